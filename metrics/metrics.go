// Copyright 2024 The FATE Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package metrics provides the Prometheus-backed instrumentation the
// worker pool and storage handle cache report through.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the counters and histograms the engine exposes.
// Callers that don't care about metrics can use NewNoOp to get a
// Registry whose series record into a private registry nothing scrapes.
type Registry struct {
	reg *prometheus.Registry

	TasksSubmitted   *prometheus.CounterVec
	TasksCompleted   *prometheus.CounterVec
	TasksFailed      *prometheus.CounterVec
	TaskDuration     *prometheus.HistogramVec
	QueueDepth       prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	PartitionEntries *prometheus.GaugeVec

	once sync.Once
}

// New returns a Registry with all series registered against a fresh
// prometheus.Registry (so multiple engine instances in one process, e.g.
// in tests, don't collide on global registration).
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		TasksSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eggroll", Name: "tasks_submitted_total", Help: "operator tasks submitted to the worker pool",
		}, []string{"operator"}),
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eggroll", Name: "tasks_completed_total", Help: "operator tasks that returned successfully",
		}, []string{"operator"}),
		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eggroll", Name: "tasks_failed_total", Help: "operator tasks that returned an error",
		}, []string{"operator"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eggroll", Name: "task_duration_seconds", Help: "per-partition operator task latency",
		}, []string{"operator"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eggroll", Name: "worker_queue_depth", Help: "pending tasks in the worker pool queue",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eggroll", Name: "handle_cache_hits_total", Help: "storage handle cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eggroll", Name: "handle_cache_misses_total", Help: "storage handle cache misses",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eggroll", Name: "handle_cache_evictions_total", Help: "storage handle cache evictions",
		}),
		PartitionEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "eggroll", Name: "partition_entries", Help: "entry count observed on last stat() of a partition",
		}, []string{"table", "partition"}),
	}
	reg.MustRegister(m.TasksSubmitted, m.TasksCompleted, m.TasksFailed, m.TaskDuration,
		m.QueueDepth, m.CacheHits, m.CacheMisses, m.CacheEvictions, m.PartitionEntries)
	return m
}

// Gatherer exposes the underlying prometheus.Registry for an HTTP /metrics
// handler (e.g. promhttp.HandlerFor(m.Gatherer(), ...)).
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.reg
}

// NewNoOp returns a Registry backed by an isolated, never-scraped
// prometheus.Registry. It is used by tests and callers that don't want
// to wire up a /metrics endpoint but still need a non-nil Registry.
func NewNoOp() *Registry {
	return New()
}
