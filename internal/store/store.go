// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store defines the persistence contract the pipeline writes
// through, and a batched, checkpoint-aware writer built on top of it.
// Reads happen only for the main checkpoint and the admin
// rollback/gap-detection operations — the core
// never queries the store otherwise, per spec.md §6.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// Token is a deduplication token derived from a batch's identity. A second
// insert carrying the same token is a no-op, making batches retry-safe
// after partial failure.
type Token [32]byte

// TokenFor derives a dedup token from (table, min, max, count).
func TokenFor(table string, min, max uint32, count int) Token {
	buf := make([]byte, len(table)+12)
	copy(buf, table)
	binary.BigEndian.PutUint32(buf[len(table):], min)
	binary.BigEndian.PutUint32(buf[len(table)+4:], max)
	binary.BigEndian.PutUint32(buf[len(table)+8:], uint32(count))
	return sha256.Sum256(buf)
}

// Store is the persistence contract the pipeline writes through.
type Store interface {
	// InsertPrices performs a deduplicated batched insert of price rows.
	InsertPrices(ctx context.Context, rows []types.PriceRow, token Token) error
	// InsertBlocks performs a deduplicated batched insert of block rows.
	InsertBlocks(ctx context.Context, rows []types.BlockRow, token Token) error
	// InsertAssets performs a deduplicated batched insert/upsert of asset rows.
	InsertAssets(ctx context.Context, rows []types.AssetRow, token Token) error
	// InsertRuntimeUpgrades performs a deduplicated batched insert of
	// runtime-upgrade rows.
	InsertRuntimeUpgrades(ctx context.Context, rows []types.RuntimeUpgradeRow, token Token) error

	// ReadCheckpoint returns the named checkpoint, or ok=false if absent.
	ReadCheckpoint(ctx context.Context, id types.CheckpointID) (types.Checkpoint, bool, error)
	// WriteCheckpoint records the named checkpoint's new position.
	WriteCheckpoint(ctx context.Context, cp types.Checkpoint) error

	// PricesAtOrAfter returns every distinct block height with at least
	// one price row at or after from, ascending, used by --detect-gaps.
	PricesAtOrAfter(ctx context.Context, from types.BlockHeight) ([]types.BlockHeight, error)
	// DeleteFromHeight deletes all prices/blocks/runtime_upgrades rows at
	// height >= from, used by --rollback-to-block.
	DeleteFromHeight(ctx context.Context, from types.BlockHeight) error
}

// Gap is one missing range detected by DetectGaps: heights (PrevHeight,
// NextHeight) are both present but not adjacent.
type Gap struct {
	PrevHeight types.BlockHeight
	NextHeight types.BlockHeight
}

// DetectGaps scans the prices table for distinct heights at or after from
// and reports any adjacent pair whose difference exceeds 1.
func DetectGaps(ctx context.Context, s Store, from types.BlockHeight) ([]Gap, error) {
	heights, err := s.PricesAtOrAfter(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("store: detect gaps: %w", err)
	}
	sorted := append([]types.BlockHeight(nil), heights...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var gaps []Gap
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] > 1 {
			gaps = append(gaps, Gap{PrevHeight: sorted[i-1], NextHeight: sorted[i]})
		}
	}
	return gaps, nil
}

// RollbackToBlock deletes every row at height >= target and resets the
// main checkpoint to target-1 (or to 0 if target is 0).
func RollbackToBlock(ctx context.Context, s Store, target types.BlockHeight, nowUnix int64) error {
	if err := s.DeleteFromHeight(ctx, target); err != nil {
		return fmt.Errorf("store: rollback delete: %w", err)
	}
	var last types.BlockHeight
	if target > 0 {
		last = target - 1
	}
	return s.WriteCheckpoint(ctx, types.Checkpoint{ID: types.CheckpointMain, LastBlock: last, UpdatedAt: nowUnix})
}
