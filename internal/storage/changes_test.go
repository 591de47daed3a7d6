package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveFile(t *testing.T) {
	cs := NewChangeStore(t.TempDir())

	p, err := cs.SaveFile("org/app", ".github/workflows/ci.yml", []byte("jobs: {}"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cs.BaseDir, "org_app", ".github", "workflows", "ci.yml"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "jobs: {}", string(data))
}

func TestSaveFileStaysInsideRepoDir(t *testing.T) {
	cs := NewChangeStore(t.TempDir())
	p, err := cs.SaveFile("app", "../../escape.yml", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cs.BaseDir, "app", "escape.yml"), p)

	_, err = cs.SaveFile("app", "", []byte("x"))
	assert.Error(t, err)
}

func TestPlans(t *testing.T) {
	cs := NewChangeStore(t.TempDir())

	ok, err := cs.HasPlan("app")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = cs.SavePlan("app", []byte("# plan"))
	require.NoError(t, err)

	ok, err = cs.HasPlan("app")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "my-repo_1", sanitize("my-repo_1"))
	assert.Equal(t, "org_repo", sanitize("org/repo"))
	assert.Equal(t, "repo", sanitize(".."))
	assert.Equal(t, "repo", sanitize(""))
}
