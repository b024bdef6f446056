package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"timetracker/internal/cli"
	"timetracker/internal/config"
	"timetracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	// stdout carries command output; keep logs on stderr and quiet by default.
	lc := log.DefaultConfig()
	lc.Level = slog.LevelWarn
	if os.Getenv("LOG_LEVEL") != "" {
		lc.Level = log.ParseLevel(cfg.LogLevel)
	}
	lc.Format = cfg.LogFormat
	lc.Component = log.ComponentCLI
	lc.Output = os.Stderr
	logger := log.New(lc)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	root := cli.NewRootCommand(cli.NewOpener(cfg, logger))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "trackerctl:", err)
		stop()
		os.Exit(1)
	}
}
