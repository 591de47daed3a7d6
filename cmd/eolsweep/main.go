package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"eolsweep/internal/cli"
	"eolsweep/internal/config"
	"eolsweep/internal/core"
	"eolsweep/internal/ctxlog"
	"eolsweep/internal/ledger"
	"eolsweep/internal/logging"
	"eolsweep/internal/storage"
	"eolsweep/internal/sweep"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes one command. Results go to outW, logs to logW.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	cmd, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := logging.New(cmd.Config.Log.Level, cmd.Config.Log.Format, logW)
	ctx = ctxlog.WithLogger(ctx, logger)

	switch cmd.Name {
	case cli.CmdRun:
		return runSweep(ctx, outW, cmd)
	case cli.CmdTransform:
		return runTransform(ctx, outW, cmd)
	case cli.CmdVerify:
		return runVerify(outW, cmd)
	case cli.CmdInspect:
		return runInspect(outW, cmd.Path)
	case cli.CmdTamper:
		return runTamper(outW, cmd.Path, cmd.Index)
	case cli.CmdInit:
		created, err := config.WriteDefault(cmd.Path)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(outW, "%s already exists\n", cmd.Path)
			return nil
		}
		fmt.Fprintf(outW, "wrote %s\n", cmd.Path)
		return nil
	}
	return &cli.ExitError{Code: 2, Message: "unknown command " + cmd.Name}
}

func runSweep(ctx context.Context, outW io.Writer, cmd *cli.Command) error {
	runner, err := sweep.NewRunner(cmd.Config)
	if err != nil {
		return err
	}
	report, err := runner.Run(ctx)
	if report != nil {
		if cmd.JSON {
			enc := json.NewEncoder(outW)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil {
				return encErr
			}
		} else {
			report.WriteSummary(outW)
		}
	}
	if err != nil {
		return err
	}
	if report.Counts()[sweep.RepoFailed] > 0 {
		return &cli.ExitError{Code: 1, Message: "some repositories failed, see the log"}
	}
	return nil
}

func runTransform(ctx context.Context, outW io.Writer, cmd *cli.Command) error {
	logger := ctxlog.FromContext(ctx).With("file", cmd.Path)
	data, err := os.ReadFile(cmd.Path)
	if err != nil {
		return err
	}

	res := core.Transformer{Schema: cmd.Config.Schema.Schema()}.Transform(data, cmd.Config.Versions)
	for _, w := range res.Warnings {
		logger.Warn("Workflow warning.", "reason", w.String())
	}
	if res.Status == core.StatusParseFailed {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%s: %v", cmd.Path, res.Err)}
	}
	if res.Err != nil {
		logger.Warn("Workflow left unchanged.", "reason", res.Err)
	}

	if cmd.JSON {
		enc := json.NewEncoder(outW)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"status":  res.Status.String(),
			"changes": res.Changes,
		})
	}
	if !cmd.Write {
		_, err := outW.Write(res.Output)
		return err
	}
	if !res.Changed() {
		fmt.Fprintf(outW, "%s: unchanged\n", cmd.Path)
		return nil
	}
	info, err := os.Stat(cmd.Path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cmd.Path, res.Output, info.Mode().Perm()); err != nil {
		return err
	}
	for _, c := range res.Changes {
		fmt.Fprintf(outW, "%s: %s %s %v -> %v\n", cmd.Path, c.Job, c.Kind, c.Before, c.After)
	}
	return nil
}

func openLedger(path string) (*ledger.Ledger, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &cli.ExitError{Code: 1, Message: fmt.Sprintf("ledger %s: %v", path, err)}
	}
	return ledger.Open(path)
}

// runVerify checks the ledger chain, then compares the stored copies of
// rewritten files with the hashes the ledger recorded for them.
func runVerify(outW io.Writer, cmd *cli.Command) error {
	l, err := openLedger(cmd.Path)
	if err != nil {
		return err
	}
	if err := l.VerifyChain(); err != nil {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("verification failed: %v", err)}
	}
	fmt.Fprintf(outW, "ledger ok: %d records\n", l.NextIndex())

	store := storage.NewChangeStore(cmd.Config.OutputDir)
	checks, err := l.CheckFiles(func(r *ledger.Record) string {
		return filepath.Join(store.RepoDir(r.Repository), filepath.FromSlash(r.Path))
	})
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, c := range checks {
		counts[c.Status]++
		if c.Status == ledger.FileModified {
			fmt.Fprintf(outW, "modified: %s/%s\n", c.Record.Repository, c.Record.Path)
		}
	}
	fmt.Fprintf(outW, "files: %d ok, %d modified, %d missing\n",
		counts[ledger.FileOK], counts[ledger.FileModified], counts[ledger.FileMissing])
	if counts[ledger.FileModified] > 0 {
		return &cli.ExitError{Code: 1, Message: "stored files do not match the ledger"}
	}
	return nil
}

func runInspect(outW io.Writer, path string) error {
	l, err := openLedger(path)
	if err != nil {
		return err
	}
	for _, r := range l.Records() {
		hash := r.Hash
		if len(hash) > 16 {
			hash = hash[:16]
		}
		fmt.Fprintf(outW, "%d %s %s %s/%s %s\n", r.Index, r.Timestamp, r.Kind, r.Repository, r.Path, hash)
	}
	return nil
}

// runTamper corrupts one record so operators can watch verify fail.
func runTamper(outW io.Writer, path string, index int) error {
	l, err := openLedger(path)
	if err != nil {
		return err
	}
	records := l.Records()
	if index >= len(records) {
		return &cli.ExitError{Code: 2, Message: fmt.Sprintf("invalid record index %d", index)}
	}
	records[index].AfterHash = "TAMPERED"
	if err := l.Rewrite(); err != nil {
		return err
	}
	fmt.Fprintf(outW, "record %d tampered\n", index)
	return nil
}
