// Package sweep runs the transformation across a fleet of repositories:
// discovery, rewrite, manifest patch, branch and commit, pull request plan,
// and the audit ledger.
package sweep

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"eolsweep/internal/config"
	"eolsweep/internal/core"
	"eolsweep/internal/ctxlog"
	"eolsweep/internal/fleet"
	"eolsweep/internal/gitops"
	"eolsweep/internal/ledger"
	"eolsweep/internal/manifest"
	"eolsweep/internal/pullrequest"
	"eolsweep/internal/security"
	"eolsweep/internal/storage"
	"eolsweep/pkg/utils"
)

// Runner ties together discovery, the transform core, and the host side
// effects for one sweep.
type Runner struct {
	Config      *config.Config
	Source      fleet.Source
	Transformer core.Transformer
	Store       *storage.ChangeStore
	Publisher   pullrequest.Publisher
	// Git commits changes on a branch in each checkout. When nil, rewritten
	// files go to Store instead and checkouts are left untouched.
	Git    *gitops.Committer
	Ledger *ledger.Ledger
	RunID  string

	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewRunner wires a runner from configuration.
func NewRunner(cfg *config.Config) (*Runner, error) {
	if cfg.Root == "" {
		return nil, errors.New("sweep: fleet root is required")
	}
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	pub, priv, _, err := security.EnsureKeyPair(cfg.Ledger.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("sweep: ledger keys: %w", err)
	}
	store := storage.NewChangeStore(cfg.OutputDir)
	r := &Runner{
		Config:      cfg,
		Source:      fleet.LocalSource{Root: cfg.Root, Archived: cfg.IsArchived},
		Transformer: core.Transformer{Schema: cfg.Schema.Schema()},
		Store:       store,
		Publisher:   pullrequest.FilePublisher{Store: store},
		Ledger:      l,
		RunID:       uuid.NewString(),
	}
	r.SetKeys(pub, priv)
	if cfg.Git.Commit {
		r.Git = &gitops.Committer{Runner: gitops.NewExecutor(cfg.Git.Timeout)}
	}
	return r, nil
}

// SetKeys sets the ledger signing keys.
func (r *Runner) SetKeys(pub ed25519.PublicKey, priv ed25519.PrivateKey) {
	r.pub, r.priv = pub, priv
}

// Run sweeps every repository of the source. One repository failing never
// stops the others; only cancellation or a ledger write failure does.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx).With("run", r.RunID)
	ctx = ctxlog.WithLogger(ctx, logger)

	repos, err := r.Source.Repositories(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Sweep started.", "repositories", len(repos), "workers", r.workers())

	report := &Report{RunID: r.RunID, Repos: make([]RepoReport, len(repos))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, repo := range repos {
		g.Go(func() error {
			rep, err := r.sweepRepo(gctx, repo)
			report.Repos[i] = rep
			return err
		})
	}
	err = g.Wait()

	counts := report.Counts()
	logger.Info("Sweep finished.",
		"changed", counts[RepoChanged],
		"unchanged", counts[RepoUnchanged],
		"skipped", counts[RepoSkipped],
		"failed", counts[RepoFailed])
	return report, err
}

func (r *Runner) workers() int {
	if r.Config.Workers < 1 {
		return 1
	}
	return r.Config.Workers
}

// pendingWrite is a file whose new content is waiting to be persisted.
type pendingWrite struct {
	rel    string
	path   string
	kind   string
	before []byte
	after  []byte
}

func (r *Runner) sweepRepo(ctx context.Context, repo fleet.Repository) (RepoReport, error) {
	logger := ctxlog.FromContext(ctx).With("repo", repo.Name)
	rep := RepoReport{Name: repo.Name}
	if err := ctx.Err(); err != nil {
		rep.Status, rep.Reason = RepoSkipped, "canceled"
		return rep, err
	}

	candidates, err := fleet.Candidates(repo, r.Config.Workflows.Dir, r.Config.Workflows.Exclude)
	switch {
	case errors.Is(err, fleet.ErrArchived):
		logger.Info("Skipping archived repository.")
		rep.Status, rep.Reason = RepoSkipped, "archived"
		return rep, nil
	case errors.Is(err, fleet.ErrNoWorkflows):
		logger.Info("Skipping repository without workflows.")
		rep.Status, rep.Reason = RepoSkipped, "no workflows"
		return rep, nil
	case err != nil:
		logger.Warn("Cannot list workflows.", "error", err)
		rep.Status, rep.Reason = RepoFailed, err.Error()
		return rep, nil
	}

	var (
		pending   []pendingWrite
		workflows []pullrequest.FileChange
		warnings  []string
	)
	for _, c := range candidates {
		fr, write := r.transformFile(ctx, c)
		rep.Files = append(rep.Files, fr)
		warnings = append(warnings, prefixed(c.RelPath, fr.Warnings)...)
		if write != nil {
			pending = append(pending, *write)
			workflows = append(workflows, pullrequest.FileChange{Path: c.RelPath, Changes: fr.Changes})
		}
	}

	minVersion := manifest.MinimumVersion(r.Config.Versions.Install)
	if mw, err := r.patchManifest(repo, minVersion); err != nil {
		logger.Warn("Cannot patch manifest.", "file", r.Config.Manifest.Path, "error", err)
		warnings = append(warnings, fmt.Sprintf("%s: %v", r.Config.Manifest.Path, err))
	} else if mw != nil {
		pending = append(pending, *mw)
		rep.Manifest = mw.rel
	}

	if len(pending) == 0 {
		rep.Status = RepoUnchanged
		return rep, nil
	}

	plan := pullrequest.Build(pullrequest.Input{
		Repository:   repo.Name,
		Runtime:      r.Config.Runtime,
		Versions:     r.Config.Versions,
		Workflows:    workflows,
		Manifest:     rep.Manifest,
		MinVersion:   minVersion,
		BranchPrefix: r.Config.PullRequest.BranchPrefix,
		Labels:       r.Config.PullRequest.Labels,
		Warnings:     warnings,
	})

	open, err := r.alreadyOpen(ctx, repo, plan)
	if err != nil {
		rep.Status, rep.Reason = RepoFailed, err.Error()
		return rep, nil
	}
	if open {
		logger.Info("Pull request already open, skipping.", "branch", plan.Branch)
		rep.Status, rep.Reason = RepoSkipped, "pull request already open"
		return rep, nil
	}

	if err := r.persist(ctx, repo, pending, plan); err != nil {
		logger.Warn("Cannot persist changes.", "error", err)
		rep.Status, rep.Reason = RepoFailed, err.Error()
		return rep, nil
	}
	if err := r.Publisher.Publish(ctx, plan); err != nil {
		if errors.Is(err, pullrequest.ErrAlreadyOpen) {
			rep.Status, rep.Reason = RepoSkipped, "pull request already open"
			return rep, nil
		}
		rep.Status, rep.Reason = RepoFailed, err.Error()
		return rep, nil
	}
	if err := r.record(repo, pending); err != nil {
		rep.Status, rep.Reason = RepoFailed, err.Error()
		return rep, err
	}

	logger.Info("Repository changed.", "files", len(pending), "branch", plan.Branch)
	rep.Status = RepoChanged
	rep.Plan = &plan
	return rep, nil
}

func (r *Runner) transformFile(ctx context.Context, c fleet.Candidate) (FileReport, *pendingWrite) {
	logger := ctxlog.FromContext(ctx).With("file", c.RelPath)
	fr := FileReport{Path: c.RelPath}

	data, err := c.Read()
	if err != nil {
		logger.Warn("Cannot read workflow.", "error", err)
		fr.Status, fr.Error = "read_failed", err.Error()
		return fr, nil
	}

	res := r.Transformer.Transform(data, r.Config.Versions)
	fr.Status = res.Status.String()
	fr.Changes = res.Changes
	for _, w := range res.Warnings {
		if w.Kind == core.WarnParseFailed {
			continue
		}
		logger.Warn("Ambiguous workflow.", "reason", w.String())
		fr.Warnings = append(fr.Warnings, w.String())
	}
	if res.Err != nil {
		fr.Error = res.Err.Error()
	}

	switch res.Status {
	case core.StatusParseFailed:
		logger.Warn("Skipping malformed workflow.", "reason", res.Err)
		return fr, nil
	case core.StatusRewritten:
		logger.Debug("Workflow rewritten.", "changes", len(res.Changes))
		return fr, &pendingWrite{rel: c.RelPath, path: c.Path, kind: ledger.KindWorkflow, before: data, after: res.Output}
	default:
		if res.Err != nil {
			logger.Warn("Workflow left unchanged.", "reason", res.Err)
		}
		return fr, nil
	}
}

func (r *Runner) patchManifest(repo fleet.Repository, minVersion string) (*pendingWrite, error) {
	mc := r.Config.Manifest
	if !mc.Enabled || mc.Path == "" || minVersion == "" {
		return nil, nil
	}
	path := filepath.Join(repo.Path, filepath.FromSlash(mc.Path))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out, changed, err := manifest.PatchEngines(data, mc.Field, minVersion)
	if err != nil || !changed {
		return nil, err
	}
	return &pendingWrite{rel: filepath.ToSlash(mc.Path), path: path, kind: ledger.KindManifest, before: data, after: out}, nil
}

func (r *Runner) alreadyOpen(ctx context.Context, repo fleet.Repository, plan pullrequest.Plan) (bool, error) {
	if r.Git != nil {
		exists, err := r.Git.BranchExists(ctx, repo.Path, plan.Branch)
		if err != nil || exists {
			return exists, err
		}
	}
	return r.Publisher.Exists(ctx, plan)
}

func (r *Runner) persist(ctx context.Context, repo fleet.Repository, pending []pendingWrite, plan pullrequest.Plan) error {
	if r.Git == nil {
		for _, p := range pending {
			if _, err := r.Store.SaveFile(repo.Name, p.rel, p.after); err != nil {
				return err
			}
		}
		return nil
	}

	original, err := r.Git.CurrentBranch(ctx, repo.Path)
	if err != nil {
		return err
	}
	if err := r.Git.CreateBranch(ctx, repo.Path, plan.Branch); err != nil {
		return err
	}
	var (
		written []pendingWrite
		files   []string
	)
	for _, p := range pending {
		if err := os.WriteFile(p.path, p.after, 0o644); err != nil {
			return r.rollback(ctx, repo, original, plan.Branch, written, fmt.Errorf("sweep: write %s: %w", p.rel, err))
		}
		written = append(written, p)
		files = append(files, p.rel)
	}
	if err := r.Git.Commit(ctx, repo.Path, files, plan.Title); err != nil {
		return r.rollback(ctx, repo, original, plan.Branch, written, err)
	}
	return nil
}

// rollback puts the checkout back the way the sweep found it after a failed
// commit, so the next sweep sees the old versions again.
func (r *Runner) rollback(ctx context.Context, repo fleet.Repository, original, branch string, written []pendingWrite, cause error) error {
	ctx = context.WithoutCancel(ctx)
	errs := []error{cause}
	files := make([]string, 0, len(written))
	for _, p := range written {
		if err := os.WriteFile(p.path, p.before, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("sweep: restore %s: %w", p.rel, err))
		}
		files = append(files, p.rel)
	}
	if err := r.Git.Abandon(ctx, repo.Path, original, branch, files); err != nil {
		errs = append(errs, err)
	}
	ctxlog.FromContext(ctx).Warn("Rolled back sweep branch.", "repo", repo.Name, "branch", branch, "restored", len(files))
	return errors.Join(errs...)
}

func (r *Runner) record(repo fleet.Repository, pending []pendingWrite) error {
	if r.Ledger == nil {
		return nil
	}
	for _, p := range pending {
		rec, err := ledger.NewRecord(r.RunID, repo.Name, p.rel, p.kind, utils.HashBytes(p.before), utils.HashBytes(p.after))
		if err != nil {
			return err
		}
		if err := r.Ledger.Append(rec, r.priv, r.pub); err != nil {
			return err
		}
	}
	return nil
}

func prefixed(prefix string, lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.TrimSpace(prefix+": "+l))
	}
	return out
}
