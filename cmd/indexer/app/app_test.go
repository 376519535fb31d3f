// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/galacticcouncil/hydration-indexer/cmd/indexer/config"
	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/blocksource/fixture"
	"github.com/galacticcouncil/hydration-indexer/internal/store"
	"github.com/galacticcouncil/hydration-indexer/internal/store/memstore"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

func testLogger() log.Logger {
	return log.NewLogger(log.NewTerminalHandlerWithLevel(bytes.NewBuffer(nil), log.LevelError, false))
}

func TestRunFailsFastWithNoStoreWiring(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), config.Config{}, Wiring{}, testLogger(), &out)
	require.Equal(t, ExitFatal, code)
	require.Contains(t, out.String(), "no store backend configured")
}

func TestRunFollowFailsFastWithNoSourceWiring(t *testing.T) {
	var out bytes.Buffer
	wiring := Wiring{
		NewStore: func(context.Context, config.Config) (store.Store, error) { return memstore.New(), nil },
	}
	code := Run(context.Background(), config.Config{}, wiring, testLogger(), &out)
	require.Equal(t, ExitFatal, code)
	require.Contains(t, out.String(), "no block source backend configured")
}

func TestRunFollowProcessesToBlockAndExitsClean(t *testing.T) {
	storage := fixture.NewMemStorage(nil)
	blocks := []blocksource.Block{
		fixture.NewBlock(1, 100, nil, nil, storage),
		fixture.NewBlock(2, 100, nil, nil, storage),
		fixture.NewBlock(3, 100, nil, nil, storage),
	}

	wiring := Wiring{
		NewSource: func(context.Context, config.Config) (blocksource.Source, error) {
			return fixture.New(blocks, 10, blocksource.FinalizedHead{Height: 3, Hash: [32]byte{3}}), nil
		},
		NewStore: func(context.Context, config.Config) (store.Store, error) { return memstore.New(), nil },
	}

	var out bytes.Buffer
	cfg := config.Config{ToBlock: 3, FlushEveryBlocks: 1}
	code := Run(context.Background(), cfg, wiring, testLogger(), &out)
	require.Equal(t, ExitOK, code)
}

func TestRunFollowResumesFromCheckpointWhenFromBlockUnset(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.WriteCheckpoint(context.Background(), types.Checkpoint{
		ID:        types.CheckpointMain,
		LastBlock: 5,
	}))

	storage := fixture.NewMemStorage(nil)
	var requestedStart types.BlockHeight
	wiring := Wiring{
		NewSource: func(context.Context, config.Config) (blocksource.Source, error) {
			requestedStart = 6
			return fixture.New([]blocksource.Block{fixture.NewBlock(6, 100, nil, nil, storage)}, 10, blocksource.FinalizedHead{Height: 6, Hash: [32]byte{6}}), nil
		},
		NewStore: func(context.Context, config.Config) (store.Store, error) { return s, nil },
	}

	var out bytes.Buffer
	cfg := config.Config{ToBlock: 6, FlushEveryBlocks: 1}
	code := Run(context.Background(), cfg, wiring, testLogger(), &out)
	require.Equal(t, ExitOK, code)
	require.Equal(t, types.BlockHeight(6), requestedStart)
}

func TestRunFollowReturnsInterruptOnCanceledContext(t *testing.T) {
	storage := fixture.NewMemStorage(nil)
	wiring := Wiring{
		NewSource: func(context.Context, config.Config) (blocksource.Source, error) {
			return fixture.New([]blocksource.Block{fixture.NewBlock(1, 100, nil, nil, storage)}, 10, blocksource.FinalizedHead{}), nil
		},
		NewStore: func(context.Context, config.Config) (store.Store, error) { return memstore.New(), nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	code := Run(ctx, config.Config{}, wiring, testLogger(), &out)
	require.Equal(t, ExitInterrupt, code)
}

func TestRunRollbackDeletesAndResetsCheckpoint(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.InsertPrices(context.Background(), []types.PriceRow{
		{AssetID: 1, BlockHeight: 10},
	}, store.TokenFor("prices", 10, 10, 1)))

	wiring := Wiring{NewStore: func(context.Context, config.Config) (store.Store, error) { return s, nil }}

	var out bytes.Buffer
	code := Run(context.Background(), config.Config{RollbackToBlock: 10}, wiring, testLogger(), &out)
	require.Equal(t, ExitOK, code)
	require.Contains(t, out.String(), "rolled back to block 10")
	require.Empty(t, s.PriceRows())
	cp, ok, err := s.ReadCheckpoint(context.Background(), types.CheckpointMain)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.BlockHeight(9), cp.LastBlock)
}

func TestRunRollbackStoreOpenFailureReturnsFatal(t *testing.T) {
	wiring := Wiring{
		NewStore: func(context.Context, config.Config) (store.Store, error) {
			return nil, errors.New("store offline")
		},
	}
	var out bytes.Buffer
	code := Run(context.Background(), config.Config{RollbackToBlock: 10}, wiring, testLogger(), &out)
	require.Equal(t, ExitFatal, code)
}

func TestRunDetectGapsAlwaysExitsOK(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.InsertPrices(context.Background(), []types.PriceRow{
		{AssetID: 1, BlockHeight: 10},
		{AssetID: 1, BlockHeight: 12},
	}, store.TokenFor("prices", 10, 12, 2)))

	wiring := Wiring{NewStore: func(context.Context, config.Config) (store.Store, error) { return s, nil }}

	var out bytes.Buffer
	code := Run(context.Background(), config.Config{DetectGaps: true}, wiring, testLogger(), &out)
	require.Equal(t, ExitOK, code)
	require.Contains(t, out.String(), "gap between block")
}

func TestRunDetectGapsReportsNoGaps(t *testing.T) {
	s := memstore.New()
	wiring := Wiring{NewStore: func(context.Context, config.Config) (store.Store, error) { return s, nil }}

	var out bytes.Buffer
	code := Run(context.Background(), config.Config{DetectGaps: true}, wiring, testLogger(), &out)
	require.Equal(t, ExitOK, code)
	require.Contains(t, out.String(), "no gaps found")
}
