// Package fleet discovers the repositories to sweep and the workflow files
// inside them.
package fleet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNoWorkflows means the repository has no workflows directory.
	ErrNoWorkflows = errors.New("fleet: no workflows directory")
	// ErrArchived means the repository is archived and must not be touched.
	ErrArchived = errors.New("fleet: repository is archived")
)

// ArchivedMarker is a file whose presence at a repository root marks it archived.
const ArchivedMarker = ".archived"

// Repository is one checked-out repository of the fleet.
type Repository struct {
	Name     string
	Path     string
	Archived bool
}

// Source lists the repositories of a fleet.
type Source interface {
	Repositories(ctx context.Context) ([]Repository, error)
}

// LocalSource treats every directory directly under Root as a repository.
type LocalSource struct {
	Root string
	// Archived reports repositories archived by configuration.
	Archived func(name string) bool
}

// Repositories lists repositories sorted by name. Hidden directories are skipped.
func (s LocalSource) Repositories(ctx context.Context) ([]Repository, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("fleet: read %s: %w", s.Root, err)
	}
	var repos []Repository
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(s.Root, entry.Name())
		repo := Repository{Name: entry.Name(), Path: path}
		if _, err := os.Stat(filepath.Join(path, ArchivedMarker)); err == nil {
			repo.Archived = true
		}
		if s.Archived != nil && s.Archived(repo.Name) {
			repo.Archived = true
		}
		repos = append(repos, repo)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos, nil
}

// Candidate is a workflow file that may reference runtime versions.
type Candidate struct {
	Repository string
	// Path is the file location on disk.
	Path string
	// RelPath is the slash-separated path relative to the repository root.
	RelPath string
}

// Candidates lists the YAML files directly inside dir (relative to the
// repository root), minus names in exclude. Matching is case-insensitive.
func Candidates(repo Repository, dir string, exclude []string) ([]Candidate, error) {
	if repo.Archived {
		return nil, fmt.Errorf("%w: %s", ErrArchived, repo.Name)
	}
	abs := filepath.Join(repo.Path, dir)
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoWorkflows, repo.Name)
		}
		return nil, fmt.Errorf("fleet: read %s: %w", abs, err)
	}
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[strings.ToLower(strings.TrimSpace(name))] = true
	}
	var out []Candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isYAMLFile(name) || skip[strings.ToLower(name)] {
			continue
		}
		out = append(out, Candidate{
			Repository: repo.Name,
			Path:       filepath.Join(abs, name),
			RelPath:    filepath.ToSlash(filepath.Join(dir, name)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

// Read returns the raw bytes of the candidate.
func (c Candidate) Read() ([]byte, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("fleet: read %s: %w", c.RelPath, err)
	}
	return data, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// DecodeContent turns a file payload with an encoding tag into raw bytes.
// API payloads are base64 with embedded line breaks.
func DecodeContent(content []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8", "none":
		return content, nil
	case "base64":
		clean := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' {
				return -1
			}
			return r
		}, string(content))
		out, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("fleet: decode base64 content: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("fleet: unsupported content encoding %q", encoding)
	}
}
