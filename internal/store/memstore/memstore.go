// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memstore implements an in-memory store.Store for tests and
// local development; it is not a production backend.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/galacticcouncil/hydration-indexer/internal/store"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// Store is a goroutine-safe in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	prices          map[priceKey]types.PriceRow
	blocks          map[types.BlockHeight]types.BlockRow
	assets          map[types.AssetId]types.AssetRow
	runtimeUpgrades map[types.BlockHeight]types.RuntimeUpgradeRow
	checkpoints     map[types.CheckpointID]types.Checkpoint
	seenTokens      map[store.Token]struct{}
}

type priceKey struct {
	asset  types.AssetId
	height types.BlockHeight
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		prices:          make(map[priceKey]types.PriceRow),
		blocks:          make(map[types.BlockHeight]types.BlockRow),
		assets:          make(map[types.AssetId]types.AssetRow),
		runtimeUpgrades: make(map[types.BlockHeight]types.RuntimeUpgradeRow),
		checkpoints:     make(map[types.CheckpointID]types.Checkpoint),
		seenTokens:      make(map[store.Token]struct{}),
	}
}

func (s *Store) InsertPrices(_ context.Context, rows []types.PriceRow, token store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedupLocked(token) {
		return nil
	}
	for _, r := range rows {
		s.prices[priceKey{r.AssetID, r.BlockHeight}] = r
	}
	return nil
}

func (s *Store) InsertBlocks(_ context.Context, rows []types.BlockRow, token store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedupLocked(token) {
		return nil
	}
	for _, r := range rows {
		s.blocks[r.BlockHeight] = r
	}
	return nil
}

func (s *Store) InsertAssets(_ context.Context, rows []types.AssetRow, token store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedupLocked(token) {
		return nil
	}
	for _, r := range rows {
		s.assets[r.AssetID] = r
	}
	return nil
}

func (s *Store) InsertRuntimeUpgrades(_ context.Context, rows []types.RuntimeUpgradeRow, token store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedupLocked(token) {
		return nil
	}
	for _, r := range rows {
		s.runtimeUpgrades[r.BlockHeight] = r
	}
	return nil
}

func (s *Store) ReadCheckpoint(_ context.Context, id types.CheckpointID) (types.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[id]
	return cp, ok, nil
}

func (s *Store) WriteCheckpoint(_ context.Context, cp types.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ID] = cp
	return nil
}

func (s *Store) PricesAtOrAfter(_ context.Context, from types.BlockHeight) ([]types.BlockHeight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[types.BlockHeight]struct{})
	for k := range s.prices {
		if k.height >= from {
			seen[k.height] = struct{}{}
		}
	}
	out := make([]types.BlockHeight, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) DeleteFromHeight(_ context.Context, from types.BlockHeight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.prices {
		if k.height >= from {
			delete(s.prices, k)
		}
	}
	for h := range s.blocks {
		if h >= from {
			delete(s.blocks, h)
		}
	}
	for h := range s.runtimeUpgrades {
		if h >= from {
			delete(s.runtimeUpgrades, h)
		}
	}
	return nil
}

// dedupLocked reports whether token has already been applied, recording it
// if not. Caller must hold s.mu.
func (s *Store) dedupLocked(token store.Token) bool {
	if _, seen := s.seenTokens[token]; seen {
		return true
	}
	s.seenTokens[token] = struct{}{}
	return false
}

// PriceRows returns every stored price row, for test assertions.
func (s *Store) PriceRows() []types.PriceRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PriceRow, 0, len(s.prices))
	for _, r := range s.prices {
		out = append(out, r)
	}
	return out
}

// BlockRows returns every stored block row, for test assertions.
func (s *Store) BlockRows() []types.BlockRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.BlockRow, 0, len(s.blocks))
	for _, r := range s.blocks {
		out = append(out, r)
	}
	return out
}
