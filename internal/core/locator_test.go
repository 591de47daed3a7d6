package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseJobs(t *testing.T, src string) []Job {
	t.Helper()
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	return Jobs(doc)
}

func TestJobsOrderAndMissing(t *testing.T) {
	jobs := parseJobs(t, "jobs:\n  b: {runs-on: x}\n  a: {runs-on: y}\n  bad: 3\n")
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].Name)
	assert.Equal(t, "a", jobs[1].Name)

	assert.Empty(t, parseJobs(t, "name: no jobs\n"))
	assert.Empty(t, parseJobs(t, "jobs: [a, b]\n"))
	assert.Empty(t, parseJobs(t, "- just\n- a list\n"))
}

func TestFindMatrixVersionField(t *testing.T) {
	jobs := parseJobs(t, `jobs:
  test:
    strategy:
      matrix:
        os: [ubuntu-latest]
        node_version: [16, "18"]
  plain:
    runs-on: ubuntu-latest
  scalar:
    strategy:
      matrix:
        node: 18
  expr:
    strategy:
      matrix: ${{ fromJSON(needs.setup.outputs.matrix) }}
`)
	require.Len(t, jobs, 4)

	ref, ok := DefaultSchema.FindMatrixVersionField(jobs[0])
	require.True(t, ok)
	assert.Equal(t, "node_version", ref.Field)
	assert.Empty(t, cmp.Diff([]string{"jobs", "test", "strategy", "matrix", "node_version"}, ref.Path))
	assert.Empty(t, cmp.Diff([]string{"16", "18"}, ref.Values))

	_, ok = DefaultSchema.FindMatrixVersionField(jobs[1])
	assert.False(t, ok)

	ref, ok = DefaultSchema.FindMatrixVersionField(jobs[2])
	require.True(t, ok)
	assert.Equal(t, []string{"18"}, ref.Values)

	_, ok = DefaultSchema.FindMatrixVersionField(jobs[3])
	assert.False(t, ok)
}

func TestFindMatrixVersionFieldFirstMatchWins(t *testing.T) {
	jobs := parseJobs(t, `jobs:
  test:
    strategy:
      matrix:
        node_version: [20]
        node: [18]
`)
	ref, ok := DefaultSchema.FindMatrixVersionField(jobs[0])
	require.True(t, ok)
	assert.Equal(t, "node_version", ref.Field)

	warnings := DefaultSchema.Ambiguities(jobs[0])
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnAmbiguousMatrix, warnings[0].Kind)
	assert.Equal(t, "test", warnings[0].Job)
}

func TestFindPinnedVersionStep(t *testing.T) {
	jobs := parseJobs(t, `jobs:
  build:
    steps:
      - uses: actions/checkout@v4
      - name: no version
        uses: actions/setup-node@v4
      - uses: actions/setup-node@v4
        with:
          node-version: "18"
      - uses: actions/setup-node@v3
        with:
          node-version: 16
  none:
    steps:
      - run: npm test
`)
	ref, ok := DefaultSchema.FindPinnedVersionStep(jobs[0])
	require.True(t, ok)
	assert.Equal(t, 2, ref.StepIndex)
	assert.Equal(t, "18", ref.Value)
	assert.Empty(t, cmp.Diff([]string{"jobs", "build", "steps", "2", "with", "node-version"}, ref.Path))

	warnings := DefaultSchema.Ambiguities(jobs[0])
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnAmbiguousSteps, warnings[0].Kind)
	assert.Contains(t, warnings[0].String(), `job "build"`)

	_, ok = DefaultSchema.FindPinnedVersionStep(jobs[1])
	assert.False(t, ok)
	assert.Empty(t, DefaultSchema.Ambiguities(jobs[1]))
}

func TestCustomSchema(t *testing.T) {
	schema := Schema{
		MatrixKeys:        []string{"python"},
		SetupActionMarker: "actions/setup-python",
		PinnedField:       "python-version",
	}
	jobs := parseJobs(t, `jobs:
  test:
    strategy:
      matrix:
        python: ["3.8", "3.12"]
    steps:
      - uses: actions/setup-python@v5
        with:
          python-version: "3.8"
`)
	m, ok := schema.FindMatrixVersionField(jobs[0])
	require.True(t, ok)
	assert.Equal(t, []string{"3.8", "3.12"}, m.Values)

	p, ok := schema.FindPinnedVersionStep(jobs[0])
	require.True(t, ok)
	assert.Equal(t, "3.8", p.Value)
}
