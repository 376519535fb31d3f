// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poolcache maintains the pipeline's view of which pools currently
// exist for each of the three pool types (Omnipool assets, XYK pools,
// Stableswap pools). It is bootstrapped once from a full storage scan, then
// kept current incrementally from per-block events, and can be fully
// invalidated and re-bootstrapped when internal/changedetect decides a
// block's storage changes cannot be safely carried forward.
package poolcache

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// Cacher is the generic cache contract every pool-type cache is built on,
// mirroring the "Put/Get/Evict/Flush/Len" shape used throughout the cache
// layer this package is adapted from.
type Cacher[K comparable, V any] interface {
	Put(key K, value V)
	Get(key K) (V, bool)
	Evict(key K)
	Flush()
	Len() int
}

// lruCache adapts the non-generic hashicorp/golang-lru v0.5 cache to the
// generic Cacher contract. Keys and values are boxed into interface{} at
// the hashicorp layer; callers never see that.
type lruCache[K comparable, V any] struct {
	c *lru.Cache
}

// newLRUCache builds a Cacher[K,V] backed by a fixed-capacity LRU.
func newLRUCache[K comparable, V any](capacity int) Cacher[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	c, err := lru.New(capacity)
	if err != nil {
		// Only returns an error for capacity <= 0, already guarded above.
		panic(err)
	}
	return &lruCache[K, V]{c: c}
}

func (l *lruCache[K, V]) Put(key K, value V) { l.c.Add(key, value) }

func (l *lruCache[K, V]) Get(key K) (V, bool) {
	v, ok := l.c.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (l *lruCache[K, V]) Evict(key K) { l.c.Remove(key) }
func (l *lruCache[K, V]) Flush()      { l.c.Purge() }
func (l *lruCache[K, V]) Len() int    { return l.c.Len() }

// Composition is the full set of pool identities known after a bootstrap or
// incremental update, used by callers (poolstate, price) to know which
// pools to read and price this block.
type Composition struct {
	OmnipoolAssets  []types.AssetId
	XYKPools        []types.AccountId
	StableswapPools []uint32
}

// Cache holds the three pool-type caches plus the identity sets used to
// detect additions and removals incrementally.
type Cache struct {
	mu sync.RWMutex

	omnipoolAssets  Cacher[types.AssetId, types.OmnipoolAssetState]
	xykPools        Cacher[types.AccountId, types.XYKPool]
	stableswapPools Cacher[uint32, types.StableswapPool]

	omnipoolSet  mapset.Set[types.AssetId]
	xykSet       mapset.Set[types.AccountId]
	stableSet    mapset.Set[uint32]

	bootstrapped bool
}

// Config sizes the three underlying LRUs. Hydration's asset and pool counts
// are in the low hundreds; defaults are generous headroom over that.
type Config struct {
	OmnipoolCapacity   int
	XYKCapacity        int
	StableswapCapacity int
}

// DefaultConfig returns capacities comfortably above current mainnet pool
// counts.
func DefaultConfig() Config {
	return Config{OmnipoolCapacity: 512, XYKCapacity: 4096, StableswapCapacity: 256}
}

// New builds an empty, not-yet-bootstrapped Cache.
func New(cfg Config) *Cache {
	return &Cache{
		omnipoolAssets:  newLRUCache[types.AssetId, types.OmnipoolAssetState](cfg.OmnipoolCapacity),
		xykPools:        newLRUCache[types.AccountId, types.XYKPool](cfg.XYKCapacity),
		stableswapPools: newLRUCache[uint32, types.StableswapPool](cfg.StableswapCapacity),
		omnipoolSet:     mapset.NewSet[types.AssetId](),
		xykSet:          mapset.NewSet[types.AccountId](),
		stableSet:       mapset.NewSet[uint32](),
	}
}

// IsBootstrapped reports whether Bootstrap has completed at least once
// since the cache was created or last invalidated.
func (c *Cache) IsBootstrapped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bootstrapped
}

// Bootstrap performs the full storage scan that seeds every pool-type cache
// from scratch. reader must be pinned to the block the scan should reflect.
// decodeAssets/decodeXYK/decodeStable are supplied by the caller because
// decoding raw storage bytes is the out-of-scope generated-schema decoder's
// job, not this package's.
func (c *Cache) Bootstrap(
	ctx context.Context,
	reader blocksource.StorageReader,
	omnipoolPrefix, xykPrefix, stablePrefix blocksource.StorageKey,
	decodeOmnipool func(blocksource.StorageEntry) (types.OmnipoolAssetState, error),
	decodeXYK func(blocksource.StorageEntry) (types.XYKPool, error),
	decodeStable func(blocksource.StorageEntry) (types.StableswapPool, error),
) error {
	omnipoolEntries, err := reader.ScanPrefix(ctx, omnipoolPrefix)
	if err != nil {
		return err
	}
	xykEntries, err := reader.ScanPrefix(ctx, xykPrefix)
	if err != nil {
		return err
	}
	stableEntries, err := reader.ScanPrefix(ctx, stablePrefix)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.flushLocked()

	for _, e := range omnipoolEntries {
		state, err := decodeOmnipool(e)
		if err != nil {
			return err
		}
		c.omnipoolAssets.Put(state.AssetID, state)
		c.omnipoolSet.Add(state.AssetID)
	}
	for _, e := range xykEntries {
		pool, err := decodeXYK(e)
		if err != nil {
			return err
		}
		c.xykPools.Put(pool.PoolAccount, pool)
		c.xykSet.Add(pool.PoolAccount)
	}
	for _, e := range stableEntries {
		pool, err := decodeStable(e)
		if err != nil {
			return err
		}
		c.stableswapPools.Put(pool.PoolID, pool)
		c.stableSet.Add(pool.PoolID)
	}

	c.bootstrapped = true
	return nil
}

// UpsertOmnipoolAsset adds or replaces one Omnipool asset's cached state,
// called by the incremental updater when it observes a TokenAdded event.
func (c *Cache) UpsertOmnipoolAsset(state types.OmnipoolAssetState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.omnipoolAssets.Put(state.AssetID, state)
	c.omnipoolSet.Add(state.AssetID)
}

// RemoveOmnipoolAsset drops an asset from the cache, called when a
// TokenRemoved event is observed.
func (c *Cache) RemoveOmnipoolAsset(id types.AssetId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.omnipoolAssets.Evict(id)
	c.omnipoolSet.Remove(id)
}

// UpsertXYKPool adds or replaces one XYK pool's cached state.
func (c *Cache) UpsertXYKPool(pool types.XYKPool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xykPools.Put(pool.PoolAccount, pool)
	c.xykSet.Add(pool.PoolAccount)
}

// RemoveXYKPool drops a pool from the cache, called when a PoolDestroyed
// event is observed.
func (c *Cache) RemoveXYKPool(account types.AccountId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xykPools.Evict(account)
	c.xykSet.Remove(account)
}

// UpsertStableswapPool adds or replaces one Stableswap pool's cached state.
func (c *Cache) UpsertStableswapPool(pool types.StableswapPool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stableswapPools.Put(pool.PoolID, pool)
	c.stableSet.Add(pool.PoolID)
}

// RemoveStableswapPool drops a pool from the cache. The pipeline's event
// handling does not call it; Stableswap pools leave the cache only through
// Invalidate.
func (c *Cache) RemoveStableswapPool(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stableswapPools.Evict(id)
	c.stableSet.Remove(id)
}

// OmnipoolAsset returns the cached state for one asset, if known.
func (c *Cache) OmnipoolAsset(id types.AssetId) (types.OmnipoolAssetState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.omnipoolAssets.Get(id)
}

// XYKPool returns the cached state for one pool, if known.
func (c *Cache) XYKPool(account types.AccountId) (types.XYKPool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.xykPools.Get(account)
}

// StableswapPool returns the cached state for one pool, if known.
func (c *Cache) StableswapPool(id uint32) (types.StableswapPool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stableswapPools.Get(id)
}

// Composition snapshots the full set of currently known pool identities.
func (c *Cache) Composition() Composition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Composition{
		OmnipoolAssets:  c.omnipoolSet.ToSlice(),
		XYKPools:        c.xykSet.ToSlice(),
		StableswapPools: c.stableSet.ToSlice(),
	}
}

// Invalidate discards every cached pool and identity, forcing the next
// Bootstrap call to rebuild state from scratch. Called when
// internal/changedetect observes a block whose storage changes it cannot
// safely carry forward (e.g. a sudo-issued raw storage write).
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
	c.bootstrapped = false
}

func (c *Cache) flushLocked() {
	c.omnipoolAssets.Flush()
	c.xykPools.Flush()
	c.stableswapPools.Flush()
	c.omnipoolSet.Clear()
	c.xykSet.Clear()
	c.stableSet.Clear()
}
