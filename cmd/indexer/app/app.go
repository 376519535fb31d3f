// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package app implements the indexer binary's behavior against an
// injected Wiring, so it can be exercised in tests without a real
// archive-gateway or analytical-store backend. cmd/indexer/main.go
// supplies the production Wiring and owns process-level concerns (signal
// handling, exit codes, logger/metrics bootstrap).
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/luxfi/log"

	"github.com/galacticcouncil/hydration-indexer/cmd/indexer/config"
	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/pipeline"
	"github.com/galacticcouncil/hydration-indexer/internal/store"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// Wiring supplies the external collaborators spec.md §1 places out of
// scope for the core: the block-streaming source and the analytical
// store. Neither is implemented in this repository; a deployer plugs in
// an archive-gateway client and a store HTTP client here.
type Wiring struct {
	NewSource func(ctx context.Context, cfg config.Config) (blocksource.Source, error)
	NewStore  func(ctx context.Context, cfg config.Config) (store.Store, error)
	Decoders  pipeline.Decoders
}

// Exit codes, per spec.md §6.
const (
	ExitOK        = 0
	ExitFatal     = 1
	ExitInterrupt = 130
)

// Run dispatches to the rollback, gap-detection, or default run-and-follow
// behavior based on cfg, and returns the process exit code.
func Run(ctx context.Context, cfg config.Config, wiring Wiring, logger log.Logger, out io.Writer) int {
	if wiring.NewStore == nil {
		fmt.Fprintln(out, "indexer: no store backend configured")
		return ExitFatal
	}
	s, err := wiring.NewStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(out, "indexer: open store: %v\n", err)
		return ExitFatal
	}

	switch {
	case cfg.RollbackToBlock != 0:
		return runRollback(ctx, s, types.BlockHeight(cfg.RollbackToBlock), out)
	case cfg.DetectGaps:
		return runDetectGaps(ctx, s, out)
	default:
		return runFollow(ctx, cfg, wiring, s, logger, out)
	}
}

func runRollback(ctx context.Context, s store.Store, target types.BlockHeight, out io.Writer) int {
	if err := store.RollbackToBlock(ctx, s, target, time.Now().Unix()); err != nil {
		fmt.Fprintf(out, "indexer: rollback to block %d: %v\n", target, err)
		return ExitFatal
	}
	fmt.Fprintf(out, "indexer: rolled back to block %d\n", target)
	return ExitOK
}

// runDetectGaps always exits 0: it is a diagnostic, per spec.md §6.
func runDetectGaps(ctx context.Context, s store.Store, out io.Writer) int {
	gaps, err := store.DetectGaps(ctx, s, 0)
	if err != nil {
		fmt.Fprintf(out, "indexer: detect gaps: %v\n", err)
		return ExitOK
	}
	if len(gaps) == 0 {
		fmt.Fprintln(out, "indexer: no gaps found")
		return ExitOK
	}
	for _, g := range gaps {
		fmt.Fprintf(out, "indexer: gap between block %d and block %d\n", g.PrevHeight, g.NextHeight)
	}
	return ExitOK
}

func runFollow(ctx context.Context, cfg config.Config, wiring Wiring, s store.Store, logger log.Logger, out io.Writer) int {
	if wiring.NewSource == nil {
		fmt.Fprintln(out, "indexer: no block source backend configured")
		return ExitFatal
	}
	source, err := wiring.NewSource(ctx, cfg)
	if err != nil {
		fmt.Fprintf(out, "indexer: open block source: %v\n", err)
		return ExitFatal
	}

	fromBlock := types.BlockHeight(cfg.FromBlock)
	if cfg.FromBlock == 0 {
		resumed, err := pipeline.Resume(ctx, s)
		if err != nil {
			fmt.Fprintf(out, "indexer: resume from checkpoint: %v\n", err)
			return ExitFatal
		}
		fromBlock = resumed
	}
	// Seeking the source to fromBlock is the source's job, not the core's
	// (spec.md §6): it is logged here so an operator can confirm the
	// gateway was actually asked to start at the right height.
	logger.Info("indexer starting", "from_block", fromBlock, "to_block", cfg.ToBlock)

	p := pipeline.New(pipeline.Config{
		USDTAsset:        types.AssetId(cfg.USDTAsset),
		FlushEveryBlocks: cfg.FlushEveryBlocks,
		Decoders:         wiring.Decoders,
		MetricsNamespace: cfg.MetricsNamespace,
	}, source, s, logger)

	if err := p.Run(ctx, types.BlockHeight(cfg.ToBlock)); err != nil {
		fmt.Fprintf(out, "indexer: run: %v\n", err)
		if ctx.Err() != nil {
			return ExitInterrupt
		}
		return ExitFatal
	}
	if ctx.Err() != nil {
		return ExitInterrupt
	}
	return ExitOK
}
