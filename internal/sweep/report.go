package sweep

import (
	"fmt"
	"io"
	"sort"

	"eolsweep/internal/core"
	"eolsweep/internal/pullrequest"
)

// RepoStatus is the outcome for one repository.
type RepoStatus string

const (
	RepoSkipped   RepoStatus = "skipped"
	RepoUnchanged RepoStatus = "unchanged"
	RepoChanged   RepoStatus = "changed"
	RepoFailed    RepoStatus = "failed"
)

// FileReport is the outcome for one workflow file.
type FileReport struct {
	Path     string        `json:"path"`
	Status   string        `json:"status"`
	Changes  []core.Change `json:"changes,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// RepoReport is the outcome for one repository.
type RepoReport struct {
	Name     string            `json:"name"`
	Status   RepoStatus        `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	Files    []FileReport      `json:"files,omitempty"`
	Manifest string            `json:"manifest,omitempty"`
	Plan     *pullrequest.Plan `json:"plan,omitempty"`
}

// Report aggregates a whole sweep.
type Report struct {
	RunID string       `json:"runId"`
	Repos []RepoReport `json:"repos"`
}

// Counts tallies repositories by status.
func (r *Report) Counts() map[RepoStatus]int {
	out := map[RepoStatus]int{}
	for _, repo := range r.Repos {
		out[repo.Status]++
	}
	return out
}

// Repo finds a repository report by name.
func (r *Report) Repo(name string) (RepoReport, bool) {
	for _, repo := range r.Repos {
		if repo.Name == name {
			return repo, true
		}
	}
	return RepoReport{}, false
}

// WriteSummary prints one line per repository and a totals line.
func (r *Report) WriteSummary(w io.Writer) {
	for _, repo := range r.Repos {
		line := fmt.Sprintf("%-10s %s", repo.Status, repo.Name)
		if repo.Reason != "" {
			line += " (" + repo.Reason + ")"
		}
		if repo.Plan != nil {
			line += " -> " + repo.Plan.Branch
		}
		fmt.Fprintln(w, line)
	}
	counts := r.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "run %s:", r.RunID)
	for _, k := range keys {
		fmt.Fprintf(w, " %s=%d", k, counts[RepoStatus(k)])
	}
	fmt.Fprintln(w)
}
