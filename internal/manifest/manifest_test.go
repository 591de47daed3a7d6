package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eolsweep/internal/core"
)

const pkg = `{
  "name": "app",
  "version": "1.0.0",
  "engines": {
    "node": ">=14",
    "npm": ">=6"
  },
  "scripts": {
    "test": "jest"
  }
}
`

func engines(t *testing.T, data []byte) map[string]string {
	t.Helper()
	var parsed struct {
		Engines map[string]string `json:"engines"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed))
	return parsed.Engines
}

func TestPatchEngines(t *testing.T) {
	out, changed, err := PatchEngines([]byte(pkg), "node", "20")
	require.NoError(t, err)
	assert.True(t, changed)

	e := engines(t, out)
	assert.Equal(t, ">=20", e["node"])
	assert.Equal(t, ">=6", e["npm"])

	text := string(out)
	assert.Less(t, strings.Index(text, `"name"`), strings.Index(text, `"engines"`))
	assert.Less(t, strings.Index(text, `"engines"`), strings.Index(text, `"scripts"`))
	assert.Contains(t, text, "\n  \"scripts\": {\n    \"test\": \"jest\"\n  }")
}

func TestPatchEnginesAlreadySet(t *testing.T) {
	src := []byte(`{"engines": {"node": ">=20"}}`)
	out, changed, err := PatchEngines(src, "node", "20")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, src, out)
}

func TestPatchEnginesMissingBlock(t *testing.T) {
	out, changed, err := PatchEngines([]byte(`{"name": "app"}`), "node", "22")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, ">=22", engines(t, out)["node"])
}

func TestPatchEnginesInvalid(t *testing.T) {
	for _, src := range []string{"", "{", "[1, 2]", `"text"`} {
		_, _, err := PatchEngines([]byte(src), "node", "20")
		assert.ErrorIs(t, err, ErrInvalid, "input %q", src)
	}
}

func TestMinimumVersion(t *testing.T) {
	assert.Equal(t, "20", MinimumVersion(core.VersionList{"24", "20", "22"}))
	assert.Equal(t, "20", MinimumVersion(core.VersionList{"lts/*", "20.0"}))
	assert.Equal(t, "lts/*", MinimumVersion(core.VersionList{"lts/*"}))
	assert.Equal(t, "", MinimumVersion(nil))
}
