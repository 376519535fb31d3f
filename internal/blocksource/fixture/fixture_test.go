// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
)

func TestSourceDeliversInOrderBatches(t *testing.T) {
	blocks := []blocksource.Block{
		NewBlock(1, 100, nil, nil, nil),
		NewBlock(2, 100, nil, nil, nil),
		NewBlock(3, 100, nil, nil, nil),
	}
	src := NewFinalizedAt(blocks, 2)

	ctx := context.Background()
	b1, err := src.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, b1.Blocks, 2)
	require.EqualValues(t, 1, b1.Blocks[0].Height)
	require.EqualValues(t, 2, b1.Blocks[1].Height)

	b2, err := src.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, b2.Blocks, 1)

	_, err = src.NextBatch(ctx)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestMemStorageScanPrefixAndBatchGet(t *testing.T) {
	storage := NewMemStorage(map[string][]byte{
		"prefix:1": []byte("a"),
		"prefix:2": []byte("b"),
		"other:1":  []byte("c"),
	})
	ctx := context.Background()

	entries, err := storage.ScanPrefix(ctx, blocksource.StorageKey("prefix:"))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got, err := storage.BatchGet(ctx, []blocksource.StorageKey{
		blocksource.StorageKey("prefix:1"),
		blocksource.StorageKey("missing"),
	})
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got["prefix:1"])
	require.NotContains(t, got, "missing")
}
