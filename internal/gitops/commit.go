package gitops

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner is the command surface the committer needs.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// Committer builds the sweep branch and commit in a checkout.
type Committer struct {
	Runner Runner
	// Author, when set, is passed as --author to git commit.
	Author string
}

// BranchExists reports whether refs/heads/branch exists in dir.
func (c *Committer) BranchExists(ctx context.Context, dir, branch string) (bool, error) {
	_, err := c.Runner.Run(ctx, dir, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// CurrentBranch returns the checked out branch, or the commit id when HEAD
// is detached.
func (c *Committer) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := c.Runner.Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if name := strings.TrimSpace(out); name != "HEAD" && name != "" {
		return name, nil
	}
	out, err = c.Runner.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Abandon undoes a sweep branch that never got its commit: files are
// unstaged, original is checked out again and branch is deleted. The caller
// restores file contents first.
func (c *Committer) Abandon(ctx context.Context, dir, original, branch string, files []string) error {
	var errs []error
	if len(files) > 0 {
		reset := append([]string{"reset", "-q", "--"}, files...)
		if _, err := c.Runner.Run(ctx, dir, reset...); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.Runner.Run(ctx, dir, "checkout", "-q", original); err != nil {
		errs = append(errs, err)
	} else if _, err := c.Runner.Run(ctx, dir, "branch", "-D", branch); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("gitops: abandon %s in %s: %w", branch, dir, err)
	}
	return nil
}

// CreateBranch checks out branch, resetting it to the current HEAD.
func (c *Committer) CreateBranch(ctx context.Context, dir, branch string) error {
	if _, err := c.Runner.Run(ctx, dir, "checkout", "-B", branch); err != nil {
		return err
	}
	return nil
}

// Commit stages files (relative to dir) and commits them with message.
func (c *Committer) Commit(ctx context.Context, dir string, files []string, message string) error {
	if len(files) == 0 {
		return errors.New("gitops: nothing to commit")
	}
	add := append([]string{"add", "--"}, files...)
	if _, err := c.Runner.Run(ctx, dir, add...); err != nil {
		return err
	}
	args := []string{"commit", "-m", message}
	if c.Author != "" {
		args = append(args, "--author", c.Author)
	}
	if _, err := c.Runner.Run(ctx, dir, args...); err != nil {
		return fmt.Errorf("gitops: commit in %s: %w", dir, err)
	}
	return nil
}
