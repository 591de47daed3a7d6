package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eolsweep/internal/core"
	"eolsweep/internal/ledger"
	"eolsweep/internal/security"
	"eolsweep/pkg/utils"
)

const workflow = `jobs:
  test:
    strategy:
      matrix:
        node: [16, 18, 20]
`

func newTestServer(t *testing.T, l *ledger.Ledger) *httptest.Server {
	t.Helper()
	vs := core.VersionSet{Remove: core.VersionList{"16", "18"}, Install: core.VersionList{"20", "22", "24"}}
	ts := httptest.NewServer(New(core.Transformer{}, vs, l, nil).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postTransform(t *testing.T, url, body string) (*http.Response, TransformResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/x-yaml", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out TransformResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransformRewrites(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, out := postTransform(t, ts.URL+"/transform", workflow)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rewritten", out.Status)
	assert.Contains(t, out.Output, "node: [20, 22, 24]")
	require.Len(t, out.Changes, 1)
	assert.Equal(t, "test", out.Changes[0].Job)
	assert.Empty(t, out.Error)
}

func TestTransformQueryOverride(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, out := postTransform(t, ts.URL+"/transform?remove=20&install=22", workflow)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rewritten", out.Status)
	assert.Contains(t, out.Output, "node: [22]")
}

func TestTransformUnchanged(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, out := postTransform(t, ts.URL+"/transform?remove=12", workflow)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "unchanged", out.Status)
	assert.Equal(t, workflow, out.Output)
	assert.Empty(t, out.Changes)
}

func TestTransformBase64(t *testing.T) {
	ts := newTestServer(t, nil)
	enc := base64.StdEncoding.EncodeToString([]byte(workflow))
	resp, out := postTransform(t, ts.URL+"/transform?encoding=base64", enc)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rewritten", out.Status)
}

func TestTransformParseFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, out := postTransform(t, ts.URL+"/transform", "jobs: [oops\n")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "parse_failed", out.Status)
	assert.NotEmpty(t, out.Error)
}

func TestTransformBadQuery(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/transform?install=", "application/x-yaml", strings.NewReader(workflow))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Post(ts.URL+"/transform?remove=18&install=18", "application/x-yaml", strings.NewReader(workflow))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	// remove alone still has to agree with the default install list.
	resp3, err := http.Post(ts.URL+"/transform?remove=20", "application/x-yaml", strings.NewReader(workflow))
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestLedgerRoutes(t *testing.T) {
	resp, err := http.Get(newTestServer(t, nil).URL + "/ledger/verify")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	pub, priv, err := security.GenerateKeyPair()
	require.NoError(t, err)
	rec, err := ledger.NewRecord("run", "app", "ci.yml", ledger.KindWorkflow, utils.HashString("a"), utils.HashString("b"))
	require.NoError(t, err)
	require.NoError(t, l.Append(rec, priv, pub))

	ts := newTestServer(t, l)
	resp, err = http.Get(ts.URL + "/ledger/verify")
	require.NoError(t, err)
	var verify map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verify))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, verify["ok"])
	assert.Equal(t, float64(1), verify["records"])

	resp, err = http.Get(ts.URL + "/ledger/records")
	require.NoError(t, err)
	var recs []ledger.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	resp.Body.Close()
	require.Len(t, recs, 1)
	assert.Equal(t, "app", recs[0].Repository)
}
