// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package prometheus exposes scheduler activity as Prometheus metrics.
package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
)

// Collector implements graph.Observer using Prometheus.
type Collector struct {
	runsStarted    *prometheus.CounterVec
	runsFinished   *prometheus.CounterVec
	activeRuns     prometheus.Gauge
	supersteps     *prometheus.HistogramVec
	frontierSize   *prometheus.HistogramVec
	nodesExecuted  *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	mergeConflicts *prometheus.CounterVec
}

// NewCollector registers the collector's metrics with the default registry.
func NewCollector() *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer)
}

// NewCollectorWith registers the collector's metrics with reg.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		runsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripgraph_runs_started_total",
				Help: "Total number of runs started",
			},
			[]string{"graph"},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripgraph_runs_finished_total",
				Help: "Total number of runs finished by status and error code",
			},
			[]string{"graph", "status", "code"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tripgraph_active_runs",
				Help: "Number of runs currently executing",
			},
		),
		supersteps: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripgraph_run_supersteps",
				Help:    "Supersteps executed per run",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 13, 25},
			},
			[]string{"graph"},
		),
		frontierSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripgraph_superstep_frontier_size",
				Help:    "Nodes dispatched per superstep",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 16},
			},
			[]string{"graph"},
		),
		nodesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripgraph_nodes_executed_total",
				Help: "Total number of node executions by status",
			},
			[]string{"graph", "node", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripgraph_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"graph", "node"},
		),
		mergeConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripgraph_merge_conflicts_total",
				Help: "Same-superstep overwrite conflicts by field",
			},
			[]string{"graph", "field"},
		),
	}
}

// RunStarted implements graph.Observer.
func (c *Collector) RunStarted(_ context.Context, graphID, _ string) {
	c.runsStarted.WithLabelValues(graphID).Inc()
	c.activeRuns.Inc()
}

// RunFinished implements graph.Observer.
func (c *Collector) RunFinished(_ context.Context, graphID, _ string, supersteps int, err error) {
	c.activeRuns.Dec()
	status, code := "success", ""
	if err != nil {
		status, code = "failure", string(errors.CodeOf(err))
	}
	c.runsFinished.WithLabelValues(graphID, status, code).Inc()
	c.supersteps.WithLabelValues(graphID).Observe(float64(supersteps))
}

// SuperstepCompleted implements graph.Observer.
func (c *Collector) SuperstepCompleted(_ context.Context, graphID string, _ int, frontier int) {
	c.frontierSize.WithLabelValues(graphID).Observe(float64(frontier))
}

// NodeFinished implements graph.Observer.
func (c *Collector) NodeFinished(_ context.Context, graphID, nodeID string, status graph.NodeStatus, elapsed time.Duration) {
	c.nodesExecuted.WithLabelValues(graphID, nodeID, string(status)).Inc()
	c.nodeDuration.WithLabelValues(graphID, nodeID).Observe(elapsed.Seconds())
}

// MergeConflict implements graph.Observer.
func (c *Collector) MergeConflict(_ context.Context, graphID string, conflict graph.Conflict) {
	c.mergeConflicts.WithLabelValues(graphID, conflict.Field).Inc()
}

var _ graph.Observer = (*Collector)(nil)
