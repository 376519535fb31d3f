// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blocksource defines the contract the core expects from the
// out-of-scope block-streaming source (archive gateway + live follow,
// reorg detection) and from the out-of-scope chain-storage decoder
// (version-guarded decoders generated from runtime metadata). Neither is
// implemented here — spec.md §1 treats both as external collaborators —
// but the pipeline is written against these interfaces so a real gateway
// and a real generated-schema package can be plugged in without touching
// internal/pipeline.
package blocksource

import (
	"context"
	"time"

	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// Event is one runtime event emitted during a block, already SCALE-decoded
// by the external chain-storage decoder into a generic field bag. Which
// fields are present and how to interpret them is versioned per
// (Pallet, Name, SpecVersion) and is the job of the decode tables in
// internal/swap and internal/poolcache, not of this package.
type Event struct {
	Pallet string
	Name   string
	Fields map[string]any
}

// Call is one dispatched extrinsic call in a block, decoded the same way
// as Event.
type Call struct {
	Pallet string
	Name   string
	Fields map[string]any
}

// StorageKey is a raw, already-hashed storage key.
type StorageKey []byte

// StorageEntry is one key/value pair returned by a storage scan.
type StorageEntry struct {
	Key   StorageKey
	Value []byte
}

// StorageReader is the per-block handle through which the pool state
// reader and pool composition cache issue paged or batched storage reads
// scoped to one block. A real implementation wraps an RPC client pinned to
// the block's hash.
type StorageReader interface {
	// ScanPrefix performs a full, paged enumeration of every entry whose
	// key begins with prefix. Used for the pool composition cache's
	// bootstrap scan and the asset registry's periodic snapshot scan.
	ScanPrefix(ctx context.Context, prefix StorageKey) ([]StorageEntry, error)
	// BatchGet resolves multiple storage keys in as few round trips as
	// possible. Missing keys are simply absent from the result map.
	BatchGet(ctx context.Context, keys []StorageKey) (map[string][]byte, error)
}

// Block is one block delivered by the source.
type Block struct {
	Height      types.BlockHeight
	Hash        [32]byte
	ParentHash  [32]byte
	Timestamp   time.Time
	SpecVersion uint32
	Events      []Event
	Calls       []Call
	Storage     StorageReader
}

// FinalizedHead is the highest block the source asserts is irreversible.
type FinalizedHead struct {
	Height types.BlockHeight
	Hash   [32]byte
}

// Batch is one unit of work delivered by the source. Blocks are always in
// ascending height order within a batch.
type Batch struct {
	Blocks        []Block
	FinalizedHead FinalizedHead
}

// Source delivers batches of blocks in order. The core never requests a
// specific block; it is told where to resume (spec.md §4.8) and then pulls
// batches until the context is canceled or ToBlock (if any) is reached.
type Source interface {
	NextBatch(ctx context.Context) (Batch, error)
}
