package cli

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"eolsweep/internal/config"
	"eolsweep/internal/core"
)

// ExitError carries the process exit code for a failure.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Subcommand names.
const (
	CmdRun       = "run"
	CmdTransform = "transform"
	CmdVerify    = "verify"
	CmdInspect   = "inspect"
	CmdTamper    = "tamper"
	CmdInit      = "init"
)

// Command is a parsed invocation.
type Command struct {
	Name       string
	ConfigPath string
	Config     *config.Config
	// Path is the fleet root for run, the workflow for transform, the ledger
	// for verify/inspect/tamper, and the config file for init.
	Path string
	// Write rewrites the workflow in place (transform).
	Write bool
	// JSON prints machine-readable output (run, transform).
	JSON bool
	// Index is the record to corrupt (tamper).
	Index int
}

const usage = `
eolsweep - rewrites CI workflows off end-of-life runtime versions.

Usage:
  eolsweep run [options] FLEET_ROOT      sweep every repository under FLEET_ROOT
  eolsweep transform [options] FILE      rewrite one workflow (stdout, or -w)
  eolsweep verify [LEDGER]               verify the audit ledger chain
  eolsweep inspect [LEDGER]              list audit ledger records
  eolsweep tamper LEDGER INDEX           corrupt one record (verification drill)
  eolsweep init [CONFIG]                 write a default configuration file

Run 'eolsweep <command> -h' for command options.
`

// Parse processes command-line arguments. It returns the command, a boolean
// reporting that the program should exit cleanly (help), or an ExitError.
func Parse(args []string, output io.Writer) (*Command, bool, error) {
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(output, usage)
		return nil, true, nil
	}

	name, rest := args[0], args[1:]
	switch name {
	case CmdRun, CmdTransform, CmdVerify, CmdInspect, CmdTamper, CmdInit:
	default:
		return nil, false, usageError("unknown command %q, run 'eolsweep -h' for usage", name)
	}

	cmd := &Command{Name: name}
	fs := flag.NewFlagSet("eolsweep "+name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage of eolsweep %s:\n", name)
		fs.PrintDefaults()
	}

	fs.StringVar(&cmd.ConfigPath, "config", config.DefaultFile, "Path to the configuration file.")
	var (
		remove, install       core.VersionList
		workers               int
		outputDir, ledgerPath string
		logLevel, logFormat   string
		commit                bool
	)
	if name == CmdRun || name == CmdTransform {
		fs.Var(&remove, "remove", "Comma separated versions to remove (overrides config).")
		fs.Var(&install, "install", "Comma separated versions to install (overrides config).")
		fs.BoolVar(&cmd.JSON, "json", false, "Print JSON instead of text.")
	}
	if name == CmdRun {
		fs.IntVar(&workers, "workers", 0, "Repositories processed concurrently.")
		fs.StringVar(&outputDir, "output", "", "Directory receiving rewritten files and pull request plans.")
		fs.StringVar(&ledgerPath, "ledger", "", "Audit ledger file.")
		fs.BoolVar(&commit, "commit", false, "Commit changes on a branch in each repository.")
	}
	if name == CmdTransform {
		fs.BoolVar(&cmd.Write, "w", false, "Write the result back to FILE.")
	}
	fs.StringVar(&logLevel, "log-level", "", "Logging level: debug, info, warn, error.")
	fs.StringVar(&logFormat, "log-format", "", "Log output format: text or json.")

	if err := fs.Parse(rest); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, usageError("%v", err)
	}

	cfg, err := config.Load(cmd.ConfigPath)
	if err != nil {
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "remove":
			cfg.Versions.Remove = remove
		case "install":
			cfg.Versions.Install = install
		case "workers":
			cfg.Workers = workers
		case "output":
			cfg.OutputDir = outputDir
		case "ledger":
			cfg.Ledger.Path = ledgerPath
		case "commit":
			cfg.Git.Commit = commit
		case "log-level":
			cfg.Log.Level = strings.ToLower(logLevel)
		case "log-format":
			cfg.Log.Format = strings.ToLower(logFormat)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, false, usageError("invalid options: %v", err)
	}
	cmd.Config = cfg

	if err := cmd.positional(fs.Args()); err != nil {
		return nil, false, err
	}
	return cmd, false, nil
}

func (c *Command) positional(args []string) error {
	switch c.Name {
	case CmdRun, CmdTransform:
		if len(args) != 1 {
			what := "FLEET_ROOT"
			if c.Name == CmdTransform {
				what = "FILE"
			}
			return usageError("%s: expected exactly one %s argument", c.Name, what)
		}
		c.Path = args[0]
		if c.Name == CmdRun {
			c.Config.Root = args[0]
		}
	case CmdVerify, CmdInspect:
		if len(args) > 1 {
			return usageError("%s: expected at most one LEDGER argument", c.Name)
		}
		c.Path = c.Config.Ledger.Path
		if len(args) == 1 {
			c.Path = args[0]
		}
	case CmdTamper:
		if len(args) != 2 {
			return usageError("tamper: expected LEDGER and INDEX")
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 0 {
			return usageError("tamper: invalid record index %q", args[1])
		}
		c.Path, c.Index = args[0], idx
	case CmdInit:
		if len(args) > 1 {
			return usageError("init: expected at most one CONFIG argument")
		}
		c.Path = c.ConfigPath
		if len(args) == 1 {
			c.Path = args[0]
		}
	}
	return nil
}
