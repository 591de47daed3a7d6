// Package gitops creates branches and commits in local repository checkouts.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Executor runs a binary inside a working directory with a timeout.
type Executor struct {
	Binary  string
	Timeout time.Duration
}

// NewExecutor returns an executor for the git binary.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{Binary: "git", Timeout: timeout}
}

// Run executes the binary with args in dir and returns its combined output.
func (e *Executor) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("gitops: %s %s: %w: %s", e.Binary, strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}
