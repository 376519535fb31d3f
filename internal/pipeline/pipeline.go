// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pipeline orchestrates the eight components into a single,
// logically single-threaded loop over batches of blocks: cache update,
// carry-forward decision, state read, price resolution, volume extraction,
// merge, and buffering, in that fixed order per block, per spec.md §5.
package pipeline

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/log"

	"github.com/galacticcouncil/hydration-indexer/internal/blocksource"
	"github.com/galacticcouncil/hydration-indexer/internal/changedetect"
	"github.com/galacticcouncil/hydration-indexer/internal/errs"
	"github.com/galacticcouncil/hydration-indexer/internal/fixedpoint"
	"github.com/galacticcouncil/hydration-indexer/internal/merge"
	"github.com/galacticcouncil/hydration-indexer/internal/metrics"
	"github.com/galacticcouncil/hydration-indexer/internal/poolcache"
	"github.com/galacticcouncil/hydration-indexer/internal/poolstate"
	"github.com/galacticcouncil/hydration-indexer/internal/price"
	"github.com/galacticcouncil/hydration-indexer/internal/registry"
	"github.com/galacticcouncil/hydration-indexer/internal/store"
	"github.com/galacticcouncil/hydration-indexer/internal/swap"
	"github.com/galacticcouncil/hydration-indexer/internal/types"
)

// ShutdownGracePeriod bounds how long the final flush on shutdown is
// allowed to take before the process gives up and exits anyway.
const ShutdownGracePeriod = 10 * time.Second

// Decoders bundles every generated-schema decode hook and storage-key
// derivation the pipeline needs but does not itself implement, per
// spec.md §1's "chain storage decoder is out of scope" boundary.
type Decoders struct {
	OmnipoolPrefix   blocksource.StorageKey
	XYKPrefix        blocksource.StorageKey
	StableswapPrefix blocksource.StorageKey
	RegistryPrefix   blocksource.StorageKey

	DecodeOmnipoolAsset  func(blocksource.StorageEntry) (types.OmnipoolAssetState, error)
	DecodeXYKPool        func(blocksource.StorageEntry) (types.XYKPool, error)
	DecodeStableswapPool func(blocksource.StorageEntry) (types.StableswapPool, error)
	DecodeRegistryAsset  registry.DecodeFunc

	TokenAccountKey    poolstate.TokenAccountKeyFunc
	DecodeTokenAccount poolstate.DecodeTokenAccountFunc
	OmnipoolAssetKey   func(asset types.AssetId) blocksource.StorageKey
}

// Config configures one pipeline run.
type Config struct {
	USDTAsset         types.AssetId
	FlushEveryBlocks  int
	RegistrySyncEvery types.BlockHeight
	Decoders          Decoders

	// MetricsNamespace, if non-empty, registers the pipeline's operational
	// counters/gauges under that prefix; left empty, Metrics.New returns a
	// no-op instance and metrics collection costs nothing.
	MetricsNamespace string
}

// Pipeline owns every per-run cache and drives blocks from a Source into a
// Store. Every field below is touched only from the single goroutine that
// calls Run: the scheduling model is single-threaded cooperative across
// blocks, per spec.md §5; concurrency is confined to the intra-block fan-out
// inside internal/poolstate.
type Pipeline struct {
	cfg    Config
	source blocksource.Source
	store  store.Store
	writer *store.BatchWriter
	pools  *poolcache.Cache
	known  *changedetect.KnownSovereignAccounts
	regTrk *registry.Tracker
	reader poolstate.Reader
	logger log.Logger
	mtr    *metrics.Metrics

	lastPrices      types.PriceMap
	haveLastPrices  bool
	lastSpecVersion uint32
	lastParentHash  [32]byte
	haveLastParent  bool

	blocksSinceFlush int
	blocksSinceReg   types.BlockHeight
	pendingHead      blocksource.FinalizedHead
}

// New builds a Pipeline ready to run.
func New(cfg Config, source blocksource.Source, s store.Store, logger log.Logger) *Pipeline {
	if cfg.FlushEveryBlocks <= 0 {
		cfg.FlushEveryBlocks = 1
	}
	if cfg.RegistrySyncEvery == 0 {
		cfg.RegistrySyncEvery = registry.SnapshotInterval(true)
	}
	return &Pipeline{
		cfg:    cfg,
		source: source,
		store:  s,
		writer: store.NewBatchWriter(s),
		pools:  poolcache.New(poolcache.DefaultConfig()),
		known:  changedetect.NewKnownSovereignAccounts(nil, nil),
		regTrk: registry.NewTracker("indexer"),
		reader: poolstate.Reader{
			TokenAccountKey:     cfg.Decoders.TokenAccountKey,
			DecodeTokenAccount:  cfg.Decoders.DecodeTokenAccount,
			OmnipoolAssetKey:    cfg.Decoders.OmnipoolAssetKey,
			DecodeOmnipoolAsset: cfg.Decoders.DecodeOmnipoolAsset,
		},
		logger: logger,
		mtr:    metrics.New(cfg.MetricsNamespace),
	}
}

// Resume reads the main checkpoint and returns the height processing
// should resume from: checkpoint+1, or 0 if no checkpoint exists yet.
func Resume(ctx context.Context, s store.Store) (types.BlockHeight, error) {
	cp, ok, err := s.ReadCheckpoint(ctx, types.CheckpointMain)
	if err != nil {
		return 0, errs.Wrap(0, "store", errs.SeverityFatal, err)
	}
	if !ok {
		return 0, nil
	}
	return cp.LastBlock + 1, nil
}

// Run pulls batches from the source and processes every block in ascending
// height order until ctx is canceled or toBlock (if non-zero) is reached.
// On cancellation it finishes the in-flight block, flushes whatever is
// buffered, and returns nil: shutdown is cooperative, not abrupt.
func (p *Pipeline) Run(ctx context.Context, toBlock types.BlockHeight) error {
	for {
		select {
		case <-ctx.Done():
			return p.shutdown()
		default:
		}

		batch, err := p.source.NextBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return p.shutdown()
			}
			return errs.Wrap(0, "blocksource", errs.SeverityFatal, err)
		}

		reachedToBlock := false
		for _, block := range batch.Blocks {
			if toBlock != 0 && block.Height > toBlock {
				reachedToBlock = true
				break
			}
			if err := p.processBlock(ctx, block); err != nil {
				return err
			}
			if toBlock != 0 && block.Height == toBlock {
				reachedToBlock = true
			}
		}
		p.pendingHead = batch.FinalizedHead

		if p.blocksSinceFlush >= p.cfg.FlushEveryBlocks {
			if err := p.flushAndCheckpoint(ctx); err != nil {
				return err
			}
		}

		if reachedToBlock {
			return nil
		}
	}
}

// processBlock runs the fixed per-block component order spec.md §5
// mandates: cache update, carry-forward decision, state read, price
// resolution, volume extraction, merge, buffer.
func (p *Pipeline) processBlock(ctx context.Context, block blocksource.Block) error {
	p.detectRuntimeUpgrade(block)
	p.checkParentContinuity(block)

	compositionChanged := p.applyCompositionEvents(block)

	if !p.pools.IsBootstrapped() {
		d := p.cfg.Decoders
		if err := p.pools.Bootstrap(ctx, block.Storage, d.OmnipoolPrefix, d.XYKPrefix, d.StableswapPrefix,
			d.DecodeOmnipoolAsset, d.DecodeXYKPool, d.DecodeStableswapPool); err != nil {
			p.logger.Warn("pool composition bootstrap failed", "block", block.Height, "err", err)
		}
		p.mtr.ObserveCacheBootstrap()
		compositionChanged = true
	}

	decision := changedetect.Evaluate(block, compositionChanged, p.known, p.haveLastPrices)
	if decision.InvalidateCache {
		p.pools.Invalidate()
		p.mtr.ObserveCacheInvalidate()
	}

	p.syncRegistry(ctx, block)

	p.writer.AddBlock(types.BlockRow{
		BlockHeight:    block.Height,
		BlockTimestamp: block.Timestamp.Unix(),
		SpecVersion:    block.SpecVersion,
	})

	if !decision.MustFullyProcess {
		p.mtr.ObserveBlock(uint64(block.Height), false)
		p.blocksSinceFlush++
		return nil
	}

	comp := p.pools.Composition()
	state, err := p.reader.Read(ctx, block.Storage, comp, p.pools, block.Height)
	if err != nil {
		p.logger.Warn("pool state read failed", "block", block.Height, "err", err)
	}

	prices := price.Resolve(state, p.cfg.USDTAsset, block.Height, p.regTrk.Decimals)
	p.lastPrices = prices
	p.haveLastPrices = true

	agg := swap.NewAggregator()
	priceOf := priceLookupFrom(prices)
	for _, ev := range block.Events {
		decoded, ok := swap.Decode(ev, block.SpecVersion)
		if !ok {
			continue
		}
		agg.Add(decoded, priceOf, p.regTrk.Decimals)
	}

	rows := merge.Rows(block.Height, prices, agg.Volumes())
	p.writer.AddPrices(rows...)

	p.mtr.ObserveBlock(uint64(block.Height), true)
	p.blocksSinceFlush++
	return nil
}

// detectRuntimeUpgrade compares this block's spec version against the last
// seen one, invalidating the pool composition cache and emitting a
// RuntimeUpgradeRow on change, per spec.md §4.1/§7.
func (p *Pipeline) detectRuntimeUpgrade(block blocksource.Block) {
	if p.lastSpecVersion != 0 && block.SpecVersion != p.lastSpecVersion {
		p.pools.Invalidate()
		p.mtr.ObserveCacheInvalidate()
		p.writer.AddRuntimeUpgrade(types.RuntimeUpgradeRow{
			BlockHeight:     block.Height,
			SpecVersion:     block.SpecVersion,
			PrevSpecVersion: p.lastSpecVersion,
		})
		p.logger.Info("runtime upgrade detected", "block", block.Height, "from", p.lastSpecVersion, "to", block.SpecVersion)
	}
	p.lastSpecVersion = block.SpecVersion
}

// checkParentContinuity logs an integrity warning (never fatal, per
// spec.md §7) when consecutive blocks in a batch don't chain by hash; a
// true reorg is the block source's responsibility to resolve before
// delivering blocks here.
func (p *Pipeline) checkParentContinuity(block blocksource.Block) {
	if p.haveLastParent && block.ParentHash != p.lastParentHash {
		p.logger.Warn("parent hash mismatch within batch", "block", block.Height, "err", errs.ErrParentHashMismatch)
	}
	p.lastParentHash = block.Hash
	p.haveLastParent = true
}

// applyCompositionEvents folds this block's Omnipool/XYK/Stableswap
// composition events into the pool cache and reports whether any were
// observed.
func (p *Pipeline) applyCompositionEvents(block blocksource.Block) bool {
	changed := false
	for _, ev := range block.Events {
		switch {
		case ev.Pallet == "Omnipool" && ev.Name == "TokenRemoved":
			if id, ok := assetIDField(ev.Fields, "assetId"); ok {
				p.pools.RemoveOmnipoolAsset(id)
			}
			changed = true
		case ev.Pallet == "Omnipool" && ev.Name == "TokenAdded":
			// Only the asset id is trustworthy off the event; hub-reserve,
			// shares and the rest come from the per-block Omnipool.Assets
			// read in internal/poolstate the moment this id is in the
			// composition set, so the cached state here is identity-only.
			if id, ok := assetIDField(ev.Fields, "assetId"); ok {
				p.pools.UpsertOmnipoolAsset(types.OmnipoolAssetState{AssetID: id})
			}
			changed = true
		case ev.Pallet == "XYK" && ev.Name == "PoolDestroyed":
			if acct, ok := accountField(ev.Fields, "pool"); ok {
				p.pools.RemoveXYKPool(acct)
				p.known.Remove(acct)
			}
			changed = true
		case ev.Pallet == "XYK" && ev.Name == "PoolCreated":
			if acct, ok := accountField(ev.Fields, "pool"); ok {
				p.known.Add(acct)
				assetA, okA := assetIDField(ev.Fields, "assetA")
				assetB, okB := assetIDField(ev.Fields, "assetB")
				if okA && okB {
					p.pools.UpsertXYKPool(types.XYKPool{PoolAccount: acct, AssetA: assetA, AssetB: assetB})
				}
			}
			changed = true
		case ev.Pallet == "Stableswap" && ev.Name == "PoolCreated":
			if id, ok := poolIDField(ev.Fields); ok {
				p.known.Add(changedetect.StableswapPoolAccount(id))
				if assets, ok := assetIDsField(ev.Fields, "assets"); ok {
					p.pools.UpsertStableswapPool(types.StableswapPool{PoolID: id, Assets: assets})
				}
			}
			changed = true
		}
	}
	return changed
}

func (p *Pipeline) syncRegistry(ctx context.Context, block blocksource.Block) {
	p.blocksSinceReg++
	if p.blocksSinceReg < p.cfg.RegistrySyncEvery {
		return
	}
	d := p.cfg.Decoders
	if d.RegistryPrefix == nil || d.DecodeRegistryAsset == nil {
		return
	}
	rows, err := p.regTrk.Sync(ctx, block.Storage, d.RegistryPrefix, block.SpecVersion, d.DecodeRegistryAsset)
	if err != nil {
		p.logger.Warn("registry sync failed", "block", block.Height, "err", err)
		return
	}
	p.writer.AddAssets(rows...)
	p.mtr.ObserveRegistrySync(len(rows))
	p.blocksSinceReg = 0
}

func (p *Pipeline) flushAndCheckpoint(ctx context.Context) error {
	prices, blocks, assets, runtimeUpgrades := p.writer.PendingCounts()
	if err := p.writer.Flush(ctx); err != nil {
		return errs.Wrap(0, "store", errs.SeverityFatal, err)
	}
	p.mtr.ObserveFlush(prices, blocks, assets, runtimeUpgrades)
	p.blocksSinceFlush = 0

	if p.pendingHead.Height == 0 {
		return nil
	}
	// Checkpoints are not part of the batched row accumulators: they advance
	// once per flush, over the finalized head, rather than once per row.
	cp := types.Checkpoint{ID: types.CheckpointMain, LastBlock: p.pendingHead.Height, UpdatedAt: time.Now().Unix()}
	if err := p.store.WriteCheckpoint(ctx, cp); err != nil {
		return errs.Wrap(0, "store", errs.SeverityFatal, err)
	}
	return nil
}

func (p *Pipeline) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownGracePeriod)
	defer cancel()
	return p.flushAndCheckpoint(ctx)
}

// priceLookupFrom adapts a block's PriceMap (decimal strings) into the
// integer-valued swap.PriceLookup volume extraction needs.
func priceLookupFrom(prices types.PriceMap) swap.PriceLookup {
	return func(asset types.AssetId) (*uint256.Int, bool) {
		s, ok := prices[asset]
		if !ok || fixedpoint.IsZeroPrice(s) {
			return nil, false
		}
		v, err := fixedpoint.ParseDecimal12(s)
		if err != nil {
			return nil, false
		}
		return v, true
	}
}

func assetIDField(fields map[string]any, key string) (types.AssetId, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case types.AssetId:
		return t, true
	case uint32:
		return types.AssetId(t), true
	default:
		return 0, false
	}
}

func assetIDsField(fields map[string]any, key string) ([]types.AssetId, bool) {
	v, ok := fields[key]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []types.AssetId:
		return t, true
	case []uint32:
		ids := make([]types.AssetId, len(t))
		for i, a := range t {
			ids[i] = types.AssetId(a)
		}
		return ids, true
	default:
		return nil, false
	}
}

func poolIDField(fields map[string]any) (uint32, bool) {
	v, ok := fields["poolId"]
	if !ok {
		return 0, false
	}
	id, ok := v.(uint32)
	return id, ok
}

func accountField(fields map[string]any, key string) (types.AccountId, bool) {
	v, ok := fields[key]
	if !ok {
		return types.AccountId{}, false
	}
	switch t := v.(type) {
	case types.AccountId:
		return t, true
	case [32]byte:
		return types.AccountId(t), true
	case []byte:
		if len(t) != 32 {
			return types.AccountId{}, false
		}
		var acct types.AccountId
		copy(acct[:], t)
		return acct, true
	default:
		return types.AccountId{}, false
	}
}
