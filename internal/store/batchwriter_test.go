// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/galacticcouncil/hydration-indexer/internal/store"
	"github.com/galacticcouncil/hydration-indexer/internal/store/memstore"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

func TestFlushOrdersBlocksBeforePrices(t *testing.T) {
	s := memstore.New()
	w := store.NewBatchWriter(s)
	w.AddBlock(types.BlockRow{BlockHeight: 1, BlockTimestamp: 100, SpecVersion: 1})
	w.AddPrices(types.PriceRow{AssetID: 1, BlockHeight: 1, UsdtPrice: "1.000000000000"})

	require.NoError(t, w.Flush(context.Background()))
	require.Equal(t, 0, w.Pending())

	blocks := s.BlockRows()
	prices := s.PriceRows()
	require.Len(t, blocks, 1)
	require.Len(t, prices, 1)
}

func TestFlushIsIdempotentAfterReprocessingSameBlock(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	w1 := store.NewBatchWriter(s)
	w1.AddBlock(types.BlockRow{BlockHeight: 5, SpecVersion: 1})
	w1.AddPrices(types.PriceRow{AssetID: 1, BlockHeight: 5, UsdtPrice: "2.000000000000"})
	require.NoError(t, w1.Flush(ctx))

	w2 := store.NewBatchWriter(s)
	w2.AddBlock(types.BlockRow{BlockHeight: 5, SpecVersion: 1})
	w2.AddPrices(types.PriceRow{AssetID: 1, BlockHeight: 5, UsdtPrice: "2.000000000000"})
	require.NoError(t, w2.Flush(ctx))

	require.Len(t, s.PriceRows(), 1)
	require.Len(t, s.BlockRows(), 1)
}

func TestTokenDiffersWhenRowCountDiffers(t *testing.T) {
	a := store.TokenFor("prices", 1, 10, 5)
	b := store.TokenFor("prices", 1, 10, 6)
	require.NotEqual(t, a, b)
}

func TestRollbackToBlockDeletesAndResetsCheckpoint(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	w := store.NewBatchWriter(s)
	w.AddBlock(types.BlockRow{BlockHeight: 10})
	w.AddPrices(types.PriceRow{AssetID: 1, BlockHeight: 10, UsdtPrice: "1.0"})
	require.NoError(t, w.Flush(ctx))
	require.NoError(t, s.WriteCheckpoint(ctx, types.Checkpoint{ID: types.CheckpointMain, LastBlock: 10}))

	require.NoError(t, store.RollbackToBlock(ctx, s, 10, 1000))

	require.Empty(t, s.PriceRows())
	cp, ok, err := s.ReadCheckpoint(ctx, types.CheckpointMain)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 9, cp.LastBlock)
}

func TestDetectGapsReportsMissingHeights(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	w := store.NewBatchWriter(s)
	w.AddPrices(
		types.PriceRow{AssetID: 1, BlockHeight: 1, UsdtPrice: "1.0"},
		types.PriceRow{AssetID: 1, BlockHeight: 2, UsdtPrice: "1.0"},
		types.PriceRow{AssetID: 1, BlockHeight: 5, UsdtPrice: "1.0"},
	)
	require.NoError(t, w.Flush(ctx))

	gaps, err := store.DetectGaps(ctx, s, 0)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	require.EqualValues(t, 2, gaps[0].PrevHeight)
	require.EqualValues(t, 5, gaps[0].NextHeight)
}
