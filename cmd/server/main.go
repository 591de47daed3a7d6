package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eolsweep/internal/config"
	"eolsweep/internal/core"
	"eolsweep/internal/ledger"
	"eolsweep/internal/logging"
	"eolsweep/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logW io.Writer, args []string) error {
	fs := flag.NewFlagSet("eolsweep-server", flag.ContinueOnError)
	fs.SetOutput(logW)
	configPath := fs.String("config", config.DefaultFile, "Path to the configuration file.")
	addr := fs.String("addr", "", "Listen address (overrides server.addr).")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if port := os.Getenv("PORT"); port != "" && *addr == "" {
		cfg.Server.Addr = ":" + port
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, logW)
	slog.SetDefault(logger)

	var l *ledger.Ledger
	if _, err := os.Stat(cfg.Ledger.Path); err == nil {
		if l, err = ledger.Open(cfg.Ledger.Path); err != nil {
			return err
		}
	} else {
		logger.Warn("Ledger not found, verification routes disabled.", "path", cfg.Ledger.Path)
	}

	srv := server.New(core.Transformer{Schema: cfg.Schema.Schema()}, cfg.Versions, l, logger)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
