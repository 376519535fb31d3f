// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the pipeline's own operational counters and
// gauges: blocks processed (carried-forward vs fully reprocessed), rows
// flushed per table, pool-cache bootstrap/invalidate counts, and registry
// sync activity. It follows the same conditional-registration pattern as
// utils.MeteredCache and internal/registry.Tracker: metrics are only
// created, and therefore only cost anything, when a namespace is given.
package metrics

import (
	"fmt"

	"github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the pipeline's luxfi/metric instruments. All methods are
// nil-safe no-ops when namespace was empty, so callers never need to guard
// a *Metrics with a nil check.
type Metrics struct {
	blocksCarriedForward metric.Counter
	blocksFullyProcessed metric.Counter

	pricesFlushed         metric.Counter
	blocksFlushed         metric.Counter
	assetsFlushed         metric.Counter
	runtimeUpgradesFlushed metric.Counter

	poolCacheBootstraps   metric.Counter
	poolCacheInvalidations metric.Counter

	registrySyncs       metric.Counter
	registryAssetChanges metric.Counter

	lastProcessedBlock metric.Gauge
}

// New builds a Metrics instance registered against luxfi/metric's default
// registry. If namespace is empty, every instrument is left nil and every
// method becomes a no-op, mirroring utils.NewMeteredCache's "only register
// stats if a namespace is provided".
func New(namespace string) *Metrics {
	return build(namespace, metric.NewCounter, metric.NewGauge)
}

// NewWithRegistry builds a Metrics instance whose instruments are registered
// against reg instead of luxfi/metric's default registry, so a caller (the
// promexport HTTP endpoint) can scrape exactly this pipeline's metrics
// without pulling in whatever else shares the process-wide default.
func NewWithRegistry(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		return &Metrics{}
	}
	m := metric.NewWithRegistry(namespace, reg)
	return build(namespace, m.NewCounter, m.NewGauge)
}

func build(
	namespace string,
	newCounter func(metric.CounterOpts) metric.Counter,
	newGauge func(metric.GaugeOpts) metric.Gauge,
) *Metrics {
	if namespace == "" {
		return &Metrics{}
	}
	counter := func(name, help string) metric.Counter {
		return newCounter(metric.CounterOpts{Name: fmt.Sprintf("%s/%s", namespace, name), Help: help})
	}
	gauge := func(name, help string) metric.Gauge {
		return newGauge(metric.GaugeOpts{Name: fmt.Sprintf("%s/%s", namespace, name), Help: help})
	}
	return &Metrics{
		blocksCarriedForward:   counter("blocks_carried_forward_total", "blocks that carried forward the previous price snapshot"),
		blocksFullyProcessed:   counter("blocks_fully_processed_total", "blocks that were fully read, priced and volumed"),
		pricesFlushed:          counter("prices_flushed_total", "price rows written to the store"),
		blocksFlushed:          counter("blocks_flushed_total", "block rows written to the store"),
		assetsFlushed:          counter("assets_flushed_total", "asset registry rows written to the store"),
		runtimeUpgradesFlushed: counter("runtime_upgrades_flushed_total", "runtime upgrade rows written to the store"),
		poolCacheBootstraps:    counter("pool_cache_bootstraps_total", "pool composition cache bootstraps"),
		poolCacheInvalidations: counter("pool_cache_invalidations_total", "pool composition cache invalidations"),
		registrySyncs:          counter("registry_syncs_total", "asset registry storage scans performed"),
		registryAssetChanges:   counter("registry_asset_changes_total", "assets whose metadata changed across a registry sync"),
		lastProcessedBlock:     gauge("last_processed_block", "height of the most recently processed block"),
	}
}

// ObserveBlock records whether a block was carried forward or fully
// reprocessed, and advances the last-processed-block gauge.
func (m *Metrics) ObserveBlock(height uint64, fullyProcessed bool) {
	if m.lastProcessedBlock != nil {
		m.lastProcessedBlock.Set(float64(height))
	}
	switch {
	case fullyProcessed && m.blocksFullyProcessed != nil:
		m.blocksFullyProcessed.Add(1)
	case !fullyProcessed && m.blocksCarriedForward != nil:
		m.blocksCarriedForward.Add(1)
	}
}

// ObserveFlush records how many rows of each table were just written.
func (m *Metrics) ObserveFlush(prices, blocks, assets, runtimeUpgrades int) {
	addIfSet(m.pricesFlushed, prices)
	addIfSet(m.blocksFlushed, blocks)
	addIfSet(m.assetsFlushed, assets)
	addIfSet(m.runtimeUpgradesFlushed, runtimeUpgrades)
}

// ObserveCacheBootstrap records a pool composition cache bootstrap.
func (m *Metrics) ObserveCacheBootstrap() {
	if m.poolCacheBootstraps != nil {
		m.poolCacheBootstraps.Add(1)
	}
}

// ObserveCacheInvalidate records a pool composition cache invalidation.
func (m *Metrics) ObserveCacheInvalidate() {
	if m.poolCacheInvalidations != nil {
		m.poolCacheInvalidations.Add(1)
	}
}

// ObserveRegistrySync records a registry storage scan and how many assets'
// metadata changed as a result.
func (m *Metrics) ObserveRegistrySync(changed int) {
	if m.registrySyncs != nil {
		m.registrySyncs.Add(1)
	}
	addIfSet(m.registryAssetChanges, changed)
}

func addIfSet(c metric.Counter, n int) {
	if c != nil && n > 0 {
		c.Add(float64(n))
	}
}
