// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command indexer is the thin CLI wrapper spec.md §6 describes: it loads
// configuration, bootstraps logging and metrics, and drives
// internal/pipeline to completion or until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/galacticcouncil/hydration-indexer/cmd/indexer/app"
	"github.com/galacticcouncil/hydration-indexer/cmd/indexer/config"
	"github.com/galacticcouncil/hydration-indexer/internal/metrics"
	"github.com/galacticcouncil/hydration-indexer/internal/metrics/promexport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := config.BuildFlagSet()
	v, err := config.BuildViper(fs, args)
	if errors.Is(err, pflag.ErrHelp) {
		return app.ExitOK
	}
	if err != nil {
		fmt.Fprintf(out, "indexer: %v\n", err)
		return app.ExitFatal
	}

	cfg, err := config.BuildConfig(v)
	if err != nil {
		fmt.Fprintf(out, "indexer: %v\n", err)
		return app.ExitFatal
	}

	logger := bootstrapLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stopMetrics := bootstrapMetrics(cfg, logger)
	defer stopMetrics()

	code := app.Run(ctx, cfg, productionWiring(), logger, out)
	if code != app.ExitFatal && ctx.Err() != nil {
		return app.ExitInterrupt
	}
	return code
}

// bootstrapLogger wires stderr or a rotating log file, with ANSI color only
// when writing to an interactive terminal, following cmd/evm-node/main.go's
// log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(...))) shape.
func bootstrapLogger(cfg config.Config) log.Logger {
	var w io.Writer = os.Stderr
	useColor := isatty.IsTerminal(os.Stderr.Fd())

	switch {
	case cfg.LogFile != "":
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		useColor = false
	case useColor:
		w = colorable.NewColorableStderr()
	}

	handler := log.NewTerminalHandlerWithLevel(w, parseLevel(cfg.LogLevel), useColor)
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch s {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// bootstrapMetrics starts the Prometheus scrape endpoint when
// --metrics-addr is set, and returns a func that shuts it down.
func bootstrapMetrics(cfg config.Config, logger log.Logger) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}
	reg := promexport.NewRegistry()
	// Registering against reg is the point of this call; the returned
	// *metrics.Metrics itself is unused here because app.Run builds its
	// own instance (via pipeline.Config.MetricsNamespace) against the
	// same namespace, and both register into the process-wide luxfi/metric
	// state that reg was built to scrape.
	_ = metrics.NewWithRegistry(cfg.MetricsNamespace, reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.Handler(reg))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "err", err)
		}
	}()
	return func() { _ = srv.Close() }
}
