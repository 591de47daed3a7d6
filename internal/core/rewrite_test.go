package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMatrixReplacementKeepsQuoting(t *testing.T) {
	doc, err := Parse([]byte(`jobs:
  test:
    strategy:
      matrix:
        node:
          - "16"
          - "18"
`))
	require.NoError(t, err)
	ref, ok := DefaultSchema.FindMatrixVersionField(Jobs(doc)[0])
	require.True(t, ok)

	require.NoError(t, ApplyMatrixReplacement(doc, ref, VersionList{"20", "22"}))
	out, err := doc.Serialize()
	require.NoError(t, err)

	assert.Contains(t, string(out), `- "20"`)
	assert.Contains(t, string(out), `- "22"`)
	assert.NotContains(t, string(out), `"18"`)
}

func TestApplyMatrixReplacementScalarBecomesList(t *testing.T) {
	doc, err := Parse([]byte("jobs:\n  test:\n    strategy:\n      matrix:\n        node: 18\n"))
	require.NoError(t, err)
	ref, ok := DefaultSchema.FindMatrixVersionField(Jobs(doc)[0])
	require.True(t, ok)

	require.NoError(t, ApplyMatrixReplacement(doc, ref, VersionList{"20", "22"}))
	out, err := doc.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), "node: [20, 22]")
}

func TestApplyMatrixReplacementThroughAlias(t *testing.T) {
	doc, err := Parse([]byte(`supported: &supported [16, 18]
jobs:
  test:
    strategy:
      matrix:
        node: *supported
`))
	require.NoError(t, err)
	ref, ok := DefaultSchema.FindMatrixVersionField(Jobs(doc)[0])
	require.True(t, ok)

	require.NoError(t, ApplyMatrixReplacement(doc, ref, VersionList{"20"}))
	out, err := doc.Serialize()
	require.NoError(t, err)

	assert.Contains(t, string(out), "supported: &supported [16, 18]")
	assert.Contains(t, string(out), "node: [20]")
}

func TestApplyPinnedReplacement(t *testing.T) {
	doc, err := Parse([]byte(`jobs:
  build:
    steps:
      - uses: actions/setup-node@v4
        with:
          node-version: 18 # pinned
          cache: npm
`))
	require.NoError(t, err)
	ref, ok := DefaultSchema.FindPinnedVersionStep(Jobs(doc)[0])
	require.True(t, ok)

	require.NoError(t, ApplyPinnedReplacement(doc, ref, "24"))
	out, err := doc.Serialize()
	require.NoError(t, err)

	assert.Contains(t, string(out), "node-version: 24")
	assert.Contains(t, string(out), "# pinned")
	assert.Contains(t, string(out), "cache: npm")
}

func TestApplyReplacementWithoutLocatedNode(t *testing.T) {
	doc, err := Parse([]byte("jobs: {}\n"))
	require.NoError(t, err)
	assert.ErrorIs(t, ApplyMatrixReplacement(doc, MatrixRef{}, VersionList{"20"}), ErrPathNotFound)
	assert.ErrorIs(t, ApplyPinnedReplacement(doc, PinnedRef{}, "20"), ErrPathNotFound)
}

func TestApplyReplacementKeepsExplicitTag(t *testing.T) {
	doc, err := Parse([]byte(`jobs:
  build:
    strategy:
      matrix:
        node: [!!str 16, !!str 18]
    steps:
      - uses: actions/setup-node@v4
        with:
          node-version: !!str 18
`))
	require.NoError(t, err)
	job := Jobs(doc)[0]
	mref, ok := DefaultSchema.FindMatrixVersionField(job)
	require.True(t, ok)
	pref, ok := DefaultSchema.FindPinnedVersionStep(job)
	require.True(t, ok)

	require.NoError(t, ApplyMatrixReplacement(doc, mref, VersionList{"20", "22"}))
	require.NoError(t, ApplyPinnedReplacement(doc, pref, "22"))
	out, err := doc.Serialize()
	require.NoError(t, err)

	assert.Contains(t, string(out), "node: [!!str 20, !!str 22]")
	assert.Contains(t, string(out), "node-version: !!str 22")
}
