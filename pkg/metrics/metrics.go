// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus counters and gauges for the upload
// and progress subsystems, built around an isolated *prometheus.Registry
// a caller constructs and threads through explicitly rather than relying
// on the process-global default registerer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the counters and gauges docbro's upload and progress
// subsystems report into. NewMetrics registers every collector on the
// bundle's own *prometheus.Registry; pass Registry() to
// promhttp.HandlerFor to expose them apart from the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	FilesProcessed   *prometheus.CounterVec
	BytesTransferred *prometheus.CounterVec
	UploadErrors     *prometheus.CounterVec
	ActiveOperations prometheus.Gauge
	OperationDuration *prometheus.HistogramVec
}

// NewMetrics constructs a Metrics bundle backed by its own registry, so
// multiple docbro instances in the same process (tests, embedders) never
// collide on the global prometheus.DefaultRegisterer.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbro",
			Subsystem: "upload",
			Name:      "files_processed_total",
			Help:      "Files processed by the upload manager, by project and outcome.",
		}, []string{"project", "outcome"}),
		BytesTransferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbro",
			Subsystem: "upload",
			Name:      "bytes_transferred_total",
			Help:      "Bytes fetched by upload adapters, by project and source type.",
		}, []string{"project", "source_type"}),
		UploadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docbro",
			Subsystem: "upload",
			Name:      "errors_total",
			Help:      "Upload errors, by project and error kind.",
		}, []string{"project", "kind"}),
		ActiveOperations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docbro",
			Subsystem: "upload",
			Name:      "active_operations",
			Help:      "Upload operations currently in progress.",
		}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docbro",
			Subsystem: "upload",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of completed upload operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"project", "status"}),
	}
	reg.MustRegister(m.FilesProcessed, m.BytesTransferred, m.UploadErrors, m.ActiveOperations, m.OperationDuration)
	return m
}

// Registry returns the isolated registry this bundle's metrics are
// registered against, for wiring into promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
