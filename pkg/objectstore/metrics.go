// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LeeDigitalWorks/imagepipe/pkg/debug"
)

var (
	ObjectReadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imagepipe",
		Subsystem: "objectstore",
		Name:      "reads_total",
		Help:      "Total number of object read operations.",
	})

	ObjectWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imagepipe",
		Subsystem: "objectstore",
		Name:      "writes_total",
		Help:      "Total number of object write operations.",
	})

	ObjectDiscardsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imagepipe",
		Subsystem: "objectstore",
		Name:      "discards_total",
		Help:      "Total number of object discard operations.",
	})

	ObjectBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imagepipe",
		Subsystem: "objectstore",
		Name:      "bytes_written_total",
		Help:      "Total bytes written across all object stores.",
	})

	BackendLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imagepipe",
		Subsystem: "objectstore",
		Name:      "backend_latency_seconds",
		Help:      "Latency of backend operations by kind and op.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "op"})
)

func init() {
	debug.Registry().MustRegister(
		ObjectReadsTotal,
		ObjectWritesTotal,
		ObjectDiscardsTotal,
		ObjectBytesWritten,
		BackendLatencySeconds,
	)
}
