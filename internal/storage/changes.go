package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PlanFile is the name of the pull request plan written per repository.
const PlanFile = "PULL_REQUEST.md"

// ChangeStore keeps rewritten files and pull request plans on disk, one
// directory per repository, for dry runs and review.
type ChangeStore struct {
	BaseDir string
}

// NewChangeStore creates a change store rooted at baseDir.
func NewChangeStore(baseDir string) *ChangeStore {
	return &ChangeStore{BaseDir: baseDir}
}

// RepoDir returns the directory holding a repository's outputs.
func (cs *ChangeStore) RepoDir(repo string) string {
	return filepath.Join(cs.BaseDir, sanitize(repo))
}

// SaveFile writes data under the repository directory at the slash-separated
// relative path rel and returns the written path.
func (cs *ChangeStore) SaveFile(repo, rel string, data []byte) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", fmt.Errorf("storage: empty path for %s", repo)
	}
	target := filepath.Join(cs.RepoDir(repo), filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", target, err)
	}
	return target, nil
}

// SavePlan writes the pull request plan for repo.
func (cs *ChangeStore) SavePlan(repo string, data []byte) (string, error) {
	return cs.SaveFile(repo, PlanFile, data)
}

// HasPlan reports whether a plan was already written for repo.
func (cs *ChangeStore) HasPlan(repo string) (bool, error) {
	_, err := os.Stat(filepath.Join(cs.RepoDir(repo), PlanFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("storage: stat plan for %s: %w", repo, err)
}

// sanitize keeps a repository name safe to use as a directory name.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	clean := strings.Trim(b.String(), ".")
	if clean == "" {
		return "repo"
	}
	return clean
}
