package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eolsweep/internal/core"
	"eolsweep/internal/server"
)

func TestRunPostsWorkflow(t *testing.T) {
	vs := core.VersionSet{Remove: core.VersionList{"16"}, Install: core.VersionList{"20", "22"}}
	ts := httptest.NewServer(server.New(core.Transformer{}, vs, nil, nil).Routes())
	defer ts.Close()

	file := filepath.Join(t.TempDir(), "ci.yml")
	require.NoError(t, os.WriteFile(file, []byte("jobs:\n  test:\n    strategy:\n      matrix:\n        node: [16]\n"), 0o644))

	var out, warnings bytes.Buffer
	require.NoError(t, run(&out, &warnings, []string{"-server", ts.URL, file}))
	assert.Contains(t, out.String(), "# status: rewritten")
	assert.Contains(t, out.String(), "node: [20, 22]")

	out.Reset()
	require.NoError(t, run(&out, &warnings, []string{"-server", ts.URL, "-remove", "12", file}))
	assert.Contains(t, out.String(), "# status: unchanged")
}

func TestRunRejectsMalformed(t *testing.T) {
	ts := httptest.NewServer(server.New(core.Transformer{}, core.VersionSet{Install: core.VersionList{"20"}}, nil, nil).Routes())
	defer ts.Close()

	file := filepath.Join(t.TempDir(), "ci.yml")
	require.NoError(t, os.WriteFile(file, []byte("jobs: [oops\n"), 0o644))
	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"-server", ts.URL, file})
	assert.ErrorContains(t, err, "422")
}

func TestRunWritesWarningsToErrorWriter(t *testing.T) {
	vs := core.VersionSet{Remove: core.VersionList{"16"}, Install: core.VersionList{"20"}}
	ts := httptest.NewServer(server.New(core.Transformer{}, vs, nil, nil).Routes())
	defer ts.Close()

	file := filepath.Join(t.TempDir(), "ci.yml")
	wf := "jobs:\n  test:\n    strategy:\n      matrix:\n        node: [16]\n        node_version: [16]\n"
	require.NoError(t, os.WriteFile(file, []byte(wf), 0o644))

	var out, warnings bytes.Buffer
	require.NoError(t, run(&out, &warnings, []string{"-server", ts.URL, file}))
	assert.Contains(t, warnings.String(), "warning: ambiguous-matrix")
	assert.NotContains(t, out.String(), "ambiguous-matrix")
}
