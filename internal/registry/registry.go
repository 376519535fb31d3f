// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry maintains the pipeline's in-memory view of asset
// metadata (symbol, name, decimals) and surfaces AssetRows whenever that
// metadata changes. It is periodically resynced from a paged storage scan
// rather than from events, matching spec.md §4.7.
package registry

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/luxfi/metric"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// DefaultDecimals is used when an asset's decimals cannot be decoded.
const DefaultDecimals types.Decimals = 12

// RawAsset is the decoded form of one registry storage entry, produced by
// the out-of-scope schema decoder the caller supplies to Sync.
type RawAsset struct {
	AssetID  types.AssetId
	Symbol   []byte
	Name     []byte
	Decimals *types.Decimals
}

// DecodeFunc decodes one registry storage entry into a RawAsset, trying
// schema versions newest-to-oldest; ok is false if no version matched.
type DecodeFunc func(entry blocksource.StorageEntry, specVersion uint32) (RawAsset, bool)

// Tracker caches known asset metadata and reports changes.
type Tracker struct {
	mu    sync.RWMutex
	cache map[types.AssetId]types.AssetMeta

	assetsTracked metric.Gauge
	changesTotal  metric.Counter
}

// NewTracker builds an empty Tracker. namespace, if non-empty, registers
// gauge/counter metrics the same way the cache layer this package is
// adapted from surfaces its stats.
func NewTracker(namespace string) *Tracker {
	t := &Tracker{cache: make(map[types.AssetId]types.AssetMeta)}
	if namespace != "" {
		t.assetsTracked = metric.NewGauge(metric.GaugeOpts{Name: fmt.Sprintf("%s/assets_tracked", namespace), Help: "number of assets with cached metadata"})
		t.changesTotal = metric.NewCounter(metric.CounterOpts{Name: fmt.Sprintf("%s/asset_metadata_changes_total", namespace), Help: "asset metadata changes observed"})
	}
	return t
}

// Decimals returns the cached decimals for an asset, the view consumed by
// internal/price and internal/swap.
func (t *Tracker) Decimals(asset types.AssetId) (types.Decimals, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	meta, ok := t.cache[asset]
	if !ok {
		return 0, false
	}
	return meta.Decimals, true
}

// Meta returns the cached metadata for an asset.
func (t *Tracker) Meta(asset types.AssetId) (types.AssetMeta, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	meta, ok := t.cache[asset]
	return meta, ok
}

// Sync performs a paged scan of the registry storage and compares every
// scanned asset's metadata against the cache, returning an AssetRow for
// each asset that is newly discovered or whose metadata changed. The cache
// is updated unconditionally, even for unchanged assets.
func (t *Tracker) Sync(ctx context.Context, storage blocksource.StorageReader, prefix blocksource.StorageKey, specVersion uint32, decode DecodeFunc) ([]types.AssetRow, error) {
	entries, err := storage.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var changed []types.AssetRow
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range entries {
		raw, ok := decode(entry, specVersion)
		if !ok {
			continue
		}
		meta := normalize(raw)
		prev, existed := t.cache[raw.AssetID]
		t.cache[raw.AssetID] = meta
		if !existed || !prev.Equal(meta) {
			changed = append(changed, types.AssetRow{
				AssetID:  raw.AssetID,
				Symbol:   meta.Symbol,
				Name:     meta.Name,
				Decimals: meta.Decimals,
			})
			if t.changesTotal != nil {
				t.changesTotal.Inc()
			}
		}
	}
	if t.assetsTracked != nil {
		t.assetsTracked.Set(float64(len(t.cache)))
	}
	return changed, nil
}

// normalize applies spec.md §4.7's fallback rules: invalid/empty UTF-8
// symbol or name becomes "Asset{id}", missing decimals defaults to 12.
func normalize(raw RawAsset) types.AssetMeta {
	symbol := sanitizeText(raw.Symbol, raw.AssetID)
	name := sanitizeText(raw.Name, raw.AssetID)
	decimals := DefaultDecimals
	if raw.Decimals != nil {
		decimals = *raw.Decimals
	}
	return types.AssetMeta{Symbol: symbol, Name: name, Decimals: decimals}
}

func sanitizeText(raw []byte, id types.AssetId) string {
	if len(raw) == 0 || !utf8.Valid(raw) {
		return fmt.Sprintf("Asset%d", uint32(id))
	}
	return string(raw)
}

// SnapshotInterval computes how often Sync should run given whether the
// pipeline is currently backfilling historical blocks or following the
// chain tip live: a coarser interval while backfilling, a finer one once
// live, matching spec.md §4.7's "larger during backfill, smaller once
// live" guidance.
func SnapshotInterval(backfilling bool) types.BlockHeight {
	if backfilling {
		return 10_000
	}
	return 100
}
