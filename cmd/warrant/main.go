// warrant runs the access engine as a standalone Forge application backed
// by the in-memory store. It is meant for local development and for
// exploring a permission catalog before wiring a database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/xraph/forge"

	warrantext "github.com/xraph/warrant/extension"
	"github.com/xraph/warrant/store/memory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		catalogPath   string
		cacheTTL      time.Duration
		sweepInterval time.Duration
		disableAudit  bool
		debug         bool
	)

	flagSet := pflag.NewFlagSet("warrant", pflag.ContinueOnError)
	flagSet.StringVar(&catalogPath, "catalog", "", "path to a YAML permission catalog (default: built-in)")
	flagSet.DurationVar(&cacheTTL, "cache-ttl", 30*time.Second, "resolution cache TTL (0 disables the cache)")
	flagSet.DurationVar(&sweepInterval, "sweep-interval", time.Minute, "elevation expiry sweep interval (0 disables it)")
	flagSet.BoolVar(&disableAudit, "disable-audit", false, "do not persist audit events")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := warrantext.DefaultConfig()
	cfg.CatalogPath = catalogPath
	cfg.CacheTTL = cacheTTL
	cfg.SweepInterval = sweepInterval
	cfg.DisableAudit = disableAudit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := forge.New(
		forge.WithExtensions(
			warrantext.New(
				warrantext.WithConfig(cfg),
				warrantext.WithStore(memory.New()),
				warrantext.WithLogger(logger),
			),
		),
	)

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	<-ctx.Done()
	return nil
}
