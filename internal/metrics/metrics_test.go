// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestEmptyNamespaceIsNoOp(t *testing.T) {
	m := New("")
	require.NotPanics(t, func() {
		m.ObserveBlock(1, true)
		m.ObserveBlock(2, false)
		m.ObserveFlush(1, 1, 0, 0)
		m.ObserveCacheBootstrap()
		m.ObserveCacheInvalidate()
		m.ObserveRegistrySync(3)
	})
}

func TestObserveBlockIncrementsCorrectCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("indexer", reg)

	m.ObserveBlock(10, true)
	m.ObserveBlock(11, false)
	m.ObserveBlock(12, false)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	full := findCounter(t, mfs, "indexer/blocks_fully_processed_total")
	carried := findCounter(t, mfs, "indexer/blocks_carried_forward_total")
	require.Equal(t, 1.0, full)
	require.Equal(t, 2.0, carried)

	lastBlock := findGauge(t, mfs, "indexer/last_processed_block")
	require.Equal(t, 12.0, lastBlock)
}

func TestObserveFlushSkipsZeroCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("indexer", reg)

	m.ObserveFlush(2, 2, 0, 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	require.Equal(t, 2.0, findCounter(t, mfs, "indexer/prices_flushed_total"))
	require.Equal(t, 2.0, findCounter(t, mfs, "indexer/blocks_flushed_total"))

	for _, mf := range mfs {
		require.NotEqual(t, "indexer/assets_flushed_total", mf.GetName())
		require.NotEqual(t, "indexer/runtime_upgrades_flushed_total", mf.GetName())
	}
}

func findCounter(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func findGauge(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}
