// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixture provides a deterministic, in-memory blocksource.Source
// used by the pipeline and component tests in place of a live gateway.
package fixture

import (
	"context"
	"errors"
	"sort"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// ErrExhausted is returned once every configured block has been delivered.
var ErrExhausted = errors.New("fixture: source exhausted")

// MemStorage is a trivial in-memory blocksource.StorageReader backed by a
// flat key/value map, keyed by the raw byte string of the key.
type MemStorage struct {
	entries map[string][]byte
}

// NewMemStorage builds a MemStorage from a key/value map.
func NewMemStorage(kv map[string][]byte) *MemStorage {
	m := make(map[string][]byte, len(kv))
	for k, v := range kv {
		m[k] = v
	}
	return &MemStorage{entries: m}
}

func (m *MemStorage) ScanPrefix(_ context.Context, prefix blocksource.StorageKey) ([]blocksource.StorageEntry, error) {
	var out []blocksource.StorageEntry
	for k, v := range m.entries {
		if len(k) < len(prefix) || k[:len(prefix)] != string(prefix) {
			continue
		}
		out = append(out, blocksource.StorageEntry{Key: blocksource.StorageKey(k), Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].Key) < string(out[j].Key) })
	return out, nil
}

func (m *MemStorage) BatchGet(_ context.Context, keys []blocksource.StorageKey) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.entries[string(k)]; ok {
			out[string(k)] = v
		}
	}
	return out, nil
}

// Source replays a fixed, pre-built list of blocks, batchSize at a time.
type Source struct {
	blocks        []blocksource.Block
	batchSize     int
	finalizedHead blocksource.FinalizedHead
	cursor        int
}

// New builds a fixture Source. finalizedHead is reported unchanged on every
// batch, matching a test scenario where finality lags behind delivery by a
// fixed margin the caller has already baked into finalizedHead.
func New(blocks []blocksource.Block, batchSize int, finalizedHead blocksource.FinalizedHead) *Source {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Source{blocks: blocks, batchSize: batchSize, finalizedHead: finalizedHead}
}

// NewFinalizedAt builds a fixture Source whose FinalizedHead is the last
// block of blocks, reported unchanged with every delivered batch.
func NewFinalizedAt(blocks []blocksource.Block, batchSize int) *Source {
	var head blocksource.FinalizedHead
	if len(blocks) > 0 {
		last := blocks[len(blocks)-1]
		head = blocksource.FinalizedHead{Height: last.Height, Hash: last.Hash}
	}
	return New(blocks, batchSize, head)
}

func (s *Source) NextBatch(ctx context.Context) (blocksource.Batch, error) {
	if err := ctx.Err(); err != nil {
		return blocksource.Batch{}, err
	}
	if s.cursor >= len(s.blocks) {
		return blocksource.Batch{}, ErrExhausted
	}
	end := s.cursor + s.batchSize
	if end > len(s.blocks) {
		end = len(s.blocks)
	}
	batch := blocksource.Batch{
		Blocks:        s.blocks[s.cursor:end],
		FinalizedHead: s.finalizedHead,
	}
	s.cursor = end
	return batch, nil
}

// Reset rewinds the source to the beginning, for re-use across test cases.
func (s *Source) Reset() { s.cursor = 0 }

// NewBlock is a small builder to keep test fixtures terse.
func NewBlock(height types.BlockHeight, specVersion uint32, events []blocksource.Event, calls []blocksource.Call, storage blocksource.StorageReader) blocksource.Block {
	return blocksource.Block{
		Height:      height,
		SpecVersion: specVersion,
		Events:      events,
		Calls:       calls,
		Storage:     storage,
	}
}
