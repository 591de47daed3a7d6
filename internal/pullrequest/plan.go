// Package pullrequest turns the changes of one repository into a pull
// request plan: branch, title, body, and labels.
package pullrequest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"eolsweep/internal/core"
)

// Policy is the kind of support change a pull request carries.
type Policy string

const (
	PolicyDropSupport Policy = "drop-support"
	PolicyAddSupport  Policy = "add-support"
)

// PolicyFor derives the policy from the version set.
func PolicyFor(vs core.VersionSet) Policy {
	if len(vs.Remove) > 0 {
		return PolicyDropSupport
	}
	return PolicyAddSupport
}

// FileChange groups the rewrites of one workflow file.
type FileChange struct {
	Path    string
	Changes []core.Change
}

// Input is everything Build needs for one repository.
type Input struct {
	Repository   string
	Runtime      string
	Versions     core.VersionSet
	Workflows    []FileChange
	Manifest     string
	MinVersion   string
	BranchPrefix string
	Labels       []string
	Warnings     []string
}

// Plan is a pull request ready to be published.
type Plan struct {
	ID         string   `json:"id"`
	Repository string   `json:"repository"`
	Policy     Policy   `json:"policy"`
	Branch     string   `json:"branch"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Labels     []string `json:"labels"`
	Files      []string `json:"files"`
}

// Build assembles the plan. The branch name depends only on the policy,
// runtime, and versions so repeated sweeps land on the same branch.
func Build(in Input) Plan {
	policy := PolicyFor(in.Versions)
	p := Plan{
		ID:         uuid.NewString(),
		Repository: in.Repository,
		Policy:     policy,
		Branch:     BranchName(in.BranchPrefix, policy, in.Runtime, in.Versions),
		Title:      Title(policy, in.Runtime, in.Versions),
		Labels:     labels(in.Labels, policy),
	}
	for _, f := range in.Workflows {
		p.Files = append(p.Files, f.Path)
	}
	if in.Manifest != "" {
		p.Files = append(p.Files, in.Manifest)
	}
	p.Body = body(in, policy)
	return p
}

// Title renders the pull request title.
func Title(policy Policy, runtime string, vs core.VersionSet) string {
	if policy == PolicyDropSupport {
		return fmt.Sprintf("Drop support for %s %s", runtime, strings.Join(vs.Remove, ", "))
	}
	return fmt.Sprintf("Add support for %s %s", runtime, vs.Latest())
}

// BranchName renders a stable branch name such as eolsweep/drop-support-node-16-18.
func BranchName(prefix string, policy Policy, runtime string, vs core.VersionSet) string {
	versions := vs.Remove
	if policy == PolicyAddSupport {
		versions = core.VersionList{vs.Latest()}
	}
	parts := []string{string(policy), slug(runtime)}
	for _, v := range versions {
		parts = append(parts, slug(v))
	}
	return prefix + strings.Join(parts, "-")
}

// slug lowercases s for use in a branch name. A trailing ".js" is dropped so
// "Node.js" becomes "node".
func slug(s string) string {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".js")
	var b strings.Builder
	gap := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			gap = false
			continue
		}
		gap = true
	}
	return b.String()
}

func labels(extra []string, policy Policy) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range append(append([]string(nil), extra...), string(policy)) {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func body(in Input, policy Policy) string {
	var b strings.Builder
	if policy == PolicyDropSupport {
		fmt.Fprintf(&b, "%s %s reached end of life. ", in.Runtime, strings.Join(in.Versions.Remove, ", "))
	}
	fmt.Fprintf(&b, "CI now runs against the supported %s versions: %s.\n", in.Runtime, strings.Join(in.Versions.Install, ", "))

	if len(in.Workflows) > 0 {
		b.WriteString("\n## Workflows\n\n")
		for _, f := range in.Workflows {
			fmt.Fprintf(&b, "- `%s`\n", f.Path)
			for _, c := range f.Changes {
				fmt.Fprintf(&b, "  - job `%s` %s `%s`: %s → %s\n",
					c.Job, c.Kind, c.Field, strings.Join(c.Before, ", "), strings.Join(c.After, ", "))
			}
		}
	}
	if in.Manifest != "" {
		fmt.Fprintf(&b, "\n## Manifest\n\n- `%s`: engines set to `>=%s`\n", in.Manifest, in.MinVersion)
	}
	if len(in.Warnings) > 0 {
		b.WriteString("\n## Needs review\n\n")
		for _, w := range in.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// Markdown renders the plan as a reviewable document.
func (p Plan) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	fmt.Fprintf(&b, "- Repository: %s\n", p.Repository)
	fmt.Fprintf(&b, "- Branch: %s\n", p.Branch)
	fmt.Fprintf(&b, "- Labels: %s\n", strings.Join(p.Labels, ", "))
	fmt.Fprintf(&b, "- Plan: %s\n\n", p.ID)
	b.WriteString(p.Body)
	return b.String()
}
