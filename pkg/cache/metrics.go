// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeeDigitalWorks/imagepipe/pkg/debug"
)

var (
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imagepipe",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of cache reads satisfied without a miss.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imagepipe",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total number of cache reads that fell through to the object store.",
	})

	CacheFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imagepipe",
		Subsystem: "cache",
		Name:      "flushes_total",
		Help:      "Total number of per-object flush operations.",
	})

	CacheEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "imagepipe",
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Current number of objects resident in the cache.",
	})
)

func init() {
	debug.Registry().MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheFlushesTotal,
		CacheEntriesGauge,
	)
}
