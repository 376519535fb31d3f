// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package promexport serves the indexer's metrics over HTTP in Prometheus
// exposition format. It builds an isolated *prometheus.Registry (rather
// than reusing prometheus's process-wide default registry) so a scrape of
// this process only ever returns this indexer's own series, the same
// isolation cmd/dbmigrate.main gets by handing factory.New a freshly
// constructed *prometheus.Registry instead of a shared one.
package promexport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry builds an empty *prometheus.Registry with the standard Go
// runtime and process collectors attached. Pass it to
// internal/metrics.NewWithRegistry so pipeline counters land in the same
// registry this package serves.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGoCollector())
	return reg
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
