// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poolstate reads, for the cached pool composition of one block,
// the reserves and parameters the price resolver needs. Reads for each
// pool type are batched and run concurrently with one another, matching
// the "fan out, join" shape used throughout this codebase for independent
// state lookups.
package poolstate

import (
	"context"

	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/changedetect"
	"github.com/galacticcouncil/hydration-indexer/internal/poolcache"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// TokenAccountKey builds the Tokens.Accounts[(account, asset)] storage key
// decoding hook the caller supplies; how the key is actually encoded is the
// generated-schema decoder's concern, this package only needs a byte key
// to batch-read.
type TokenAccountKeyFunc func(account types.AccountId, asset types.AssetId) blocksource.StorageKey

// DecodeTokenAccountFunc decodes a Tokens.Accounts value into its free
// balance.
type DecodeTokenAccountFunc func(raw []byte) (*uint256.Int, error)

// DecodeOmnipoolAssetFunc decodes an Omnipool asset storage entry into its
// hub-reserve/shares/protocolShares/cap/tradable fields (reserve is filled
// in separately from the Tokens.Accounts read). Shares the same signature
// as the bootstrap-time decode hook so one decoder serves both.
type DecodeOmnipoolAssetFunc func(entry blocksource.StorageEntry) (types.OmnipoolAssetState, error)

// Reader batches the per-pool-type storage reads described in spec.md §4.3.
type Reader struct {
	TokenAccountKey     TokenAccountKeyFunc
	DecodeTokenAccount  DecodeTokenAccountFunc
	OmnipoolAssetKey    func(asset types.AssetId) blocksource.StorageKey
	DecodeOmnipoolAsset DecodeOmnipoolAssetFunc
}

// Result holds the three pool-type inputs the price resolver consumes,
// each independently degraded (missing entries dropped, never a fatal
// error for the other pool types).
type Result struct {
	OmnipoolAssets  map[types.AssetId]types.OmnipoolAssetState
	XYKPools        map[types.AccountId]types.XYKPool
	StableswapPools map[uint32]types.StableswapPool
}

// Read performs all three pool-type reads concurrently against storage
// pinned to block, using the pool identities from comp (already resolved
// by the composition cache for this block) and the pools' static
// parameters from cache (asset pairs, pool members, amplification ramps).
func (r *Reader) Read(ctx context.Context, storage blocksource.StorageReader, comp poolcache.Composition, cache *poolcache.Cache, blockHeight types.BlockHeight) (Result, error) {
	res := Result{
		OmnipoolAssets:  make(map[types.AssetId]types.OmnipoolAssetState, len(comp.OmnipoolAssets)),
		XYKPools:        make(map[types.AccountId]types.XYKPool, len(comp.XYKPools)),
		StableswapPools: make(map[uint32]types.StableswapPool, len(comp.StableswapPools)),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.readOmnipool(gctx, storage, comp.OmnipoolAssets, cache, res.OmnipoolAssets)
		return nil
	})
	g.Go(func() error {
		r.readXYK(gctx, storage, comp.XYKPools, cache, res.XYKPools)
		return nil
	})
	g.Go(func() error {
		r.readStableswap(gctx, storage, comp.StableswapPools, cache, blockHeight, res.StableswapPools)
		return nil
	})

	// Errors from each branch are already absorbed internally (failure of
	// one pool type must never poison the others), so the group itself
	// never actually returns an error; Wait only joins the goroutines.
	_ = g.Wait()
	return res, nil
}

// readOmnipool reads both halves of an Omnipool asset's per-block state:
// the Omnipool.Assets entry itself (hub-reserve, shares, protocolShares,
// cap, tradable) and the Tokens.Accounts entry for the asset's reserve held
// by the Omnipool account. Both are read fresh at the pinned block height;
// the cache (populated at Bootstrap/Upsert time) is consulted only as a
// fallback when the per-block Omnipool.Assets read is unavailable or fails
// to decode, and an asset is omitted entirely from out rather than priced
// off a stale or partial state.
func (r *Reader) readOmnipool(ctx context.Context, storage blocksource.StorageReader, assetIDs []types.AssetId, cache *poolcache.Cache, out map[types.AssetId]types.OmnipoolAssetState) {
	omnipoolAccount := changedetect.OmnipoolAccount()
	assetKeys := make([]blocksource.StorageKey, len(assetIDs))
	reserveKeys := make([]blocksource.StorageKey, len(assetIDs))
	keys := make([]blocksource.StorageKey, 0, 2*len(assetIDs))
	for i, id := range assetIDs {
		assetKeys[i] = r.OmnipoolAssetKey(id)
		reserveKeys[i] = r.TokenAccountKey(omnipoolAccount, id)
		keys = append(keys, assetKeys[i], reserveKeys[i])
	}
	values, err := storage.BatchGet(ctx, keys)
	if err != nil {
		values = nil
	}

	for i, id := range assetIDs {
		state, ok := r.decodeOmnipoolAssetEntry(values, assetKeys[i], id)
		if !ok {
			cached, ok := cache.OmnipoolAsset(id)
			if !ok {
				continue
			}
			state = cached
		}

		raw, ok := values[string(reserveKeys[i])]
		if !ok {
			continue
		}
		reserve, derr := r.DecodeTokenAccount(raw)
		if derr != nil {
			continue
		}
		state.Reserve = reserve
		out[id] = state
	}
}

func (r *Reader) decodeOmnipoolAssetEntry(values map[string][]byte, key blocksource.StorageKey, id types.AssetId) (types.OmnipoolAssetState, bool) {
	raw, ok := values[string(key)]
	if !ok {
		return types.OmnipoolAssetState{}, false
	}
	state, err := r.DecodeOmnipoolAsset(blocksource.StorageEntry{Key: key, Value: raw})
	if err != nil {
		return types.OmnipoolAssetState{}, false
	}
	return state, true
}

func (r *Reader) readXYK(ctx context.Context, storage blocksource.StorageReader, accounts []types.AccountId, cache *poolcache.Cache, out map[types.AccountId]types.XYKPool) {
	var keys []blocksource.StorageKey
	for _, acct := range accounts {
		pool, ok := cache.XYKPool(acct)
		if !ok {
			continue
		}
		keys = append(keys, r.TokenAccountKey(acct, pool.AssetA), r.TokenAccountKey(acct, pool.AssetB))
	}
	values, err := storage.BatchGet(ctx, keys)
	if err != nil {
		return
	}
	for _, acct := range accounts {
		pool, ok := cache.XYKPool(acct)
		if !ok {
			continue
		}
		ka := r.TokenAccountKey(acct, pool.AssetA)
		kb := r.TokenAccountKey(acct, pool.AssetB)
		rawA, okA := values[string(ka)]
		rawB, okB := values[string(kb)]
		if !okA || !okB {
			continue
		}
		reserveA, errA := r.DecodeTokenAccount(rawA)
		reserveB, errB := r.DecodeTokenAccount(rawB)
		if errA != nil || errB != nil {
			continue
		}
		pool.ReserveA = reserveA
		pool.ReserveB = reserveB
		out[acct] = pool
	}
}

func (r *Reader) readStableswap(ctx context.Context, storage blocksource.StorageReader, poolIDs []uint32, cache *poolcache.Cache, blockHeight types.BlockHeight, out map[uint32]types.StableswapPool) {
	for _, id := range poolIDs {
		pool, ok := cache.StableswapPool(id)
		if !ok {
			continue
		}
		subAccount := changedetect.StableswapPoolAccount(id)
		keys := make([]blocksource.StorageKey, len(pool.Assets))
		for i, asset := range pool.Assets {
			keys[i] = r.TokenAccountKey(subAccount, asset)
		}
		values, err := storage.BatchGet(ctx, keys)
		if err != nil {
			continue
		}
		reserves := make([]*uint256.Int, len(pool.Assets))
		complete := true
		for i, key := range keys {
			raw, ok := values[string(key)]
			if !ok {
				complete = false
				break
			}
			reserve, derr := r.DecodeTokenAccount(raw)
			if derr != nil {
				complete = false
				break
			}
			reserves[i] = reserve
		}
		if !complete {
			continue
		}
		pool.Reserves = reserves
		out[id] = pool
	}
}

// CurrentAmplification linearly interpolates the amplification coefficient
// for a Stableswap pool at blockHeight, clamped at the ramp endpoints.
func CurrentAmplification(ramp types.AmplificationRamp, blockHeight types.BlockHeight) *uint256.Int {
	if blockHeight <= ramp.BlockStart || ramp.BlockEnd <= ramp.BlockStart {
		return uint256.NewInt(ramp.RampStart)
	}
	if blockHeight >= ramp.BlockEnd {
		return uint256.NewInt(ramp.RampEnd)
	}
	elapsed := uint64(blockHeight - ramp.BlockStart)
	span := uint64(ramp.BlockEnd - ramp.BlockStart)
	if ramp.RampEnd >= ramp.RampStart {
		delta := ramp.RampEnd - ramp.RampStart
		return uint256.NewInt(ramp.RampStart + (delta*elapsed)/span)
	}
	delta := ramp.RampStart - ramp.RampEnd
	return uint256.NewInt(ramp.RampStart - (delta*elapsed)/span)
}
