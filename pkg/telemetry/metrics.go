// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
)

// EngineMetrics records scheduler activity as OpenTelemetry instruments. It
// implements graph.Observer.
type EngineMetrics struct {
	runs       metric.Int64Counter
	supersteps metric.Int64Histogram
	failures   metric.Int64Counter
	conflicts  metric.Int64Counter
	duration   metric.Float64Histogram
	frontier   metric.Int64Histogram
}

// NewEngineMetrics creates the engine instruments on the global meter
// provider.
func NewEngineMetrics() (*EngineMetrics, error) {
	return NewEngineMetricsWithMeter(otel.Meter("tripgraph/graph"))
}

// NewEngineMetricsWithMeter creates the engine instruments on meter.
func NewEngineMetricsWithMeter(meter metric.Meter) (*EngineMetrics, error) {
	runs, err := meter.Int64Counter(
		"tripgraph.runs.total",
		metric.WithDescription("Finished runs by outcome and error code"),
	)
	if err != nil {
		return nil, err
	}

	supersteps, err := meter.Int64Histogram(
		"tripgraph.supersteps",
		metric.WithDescription("Supersteps executed per run"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"tripgraph.node.failures",
		metric.WithDescription("Node failures by node and severity"),
	)
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter(
		"tripgraph.merge.conflicts",
		metric.WithDescription("Same-superstep overwrite conflicts by field"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"tripgraph.node.duration",
		metric.WithDescription("Node execution time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	frontier, err := meter.Int64Histogram(
		"tripgraph.frontier.size",
		metric.WithDescription("Nodes dispatched per superstep"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		runs:       runs,
		supersteps: supersteps,
		failures:   failures,
		conflicts:  conflicts,
		duration:   duration,
		frontier:   frontier,
	}, nil
}

// RunStarted implements graph.Observer.
func (m *EngineMetrics) RunStarted(context.Context, string, string) {}

// RunFinished implements graph.Observer.
func (m *EngineMetrics) RunFinished(ctx context.Context, graphID, _ string, supersteps int, err error) {
	if m == nil {
		return
	}
	outcome, code := "success", ""
	if err != nil {
		outcome, code = "failure", string(errors.CodeOf(err))
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGraphID, graphID),
		attribute.String("outcome", outcome),
		attribute.String(AttrErrorCode, code),
	))
	m.supersteps.Record(ctx, int64(supersteps), metric.WithAttributes(attribute.String(AttrGraphID, graphID)))
}

// SuperstepCompleted implements graph.Observer.
func (m *EngineMetrics) SuperstepCompleted(ctx context.Context, graphID string, _ int, frontier int) {
	if m == nil {
		return
	}
	m.frontier.Record(ctx, int64(frontier), metric.WithAttributes(attribute.String(AttrGraphID, graphID)))
}

// NodeFinished implements graph.Observer.
func (m *EngineMetrics) NodeFinished(ctx context.Context, graphID, nodeID string, status graph.NodeStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(NodeAttributes(graphID, nodeID, string(status))...)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if status == graph.NodeFailed || status == graph.NodeSoftFailed {
		m.failures.Add(ctx, 1, attrs)
	}
}

// MergeConflict implements graph.Observer.
func (m *EngineMetrics) MergeConflict(ctx context.Context, graphID string, conflict graph.Conflict) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGraphID, graphID),
		attribute.String(AttrField, conflict.Field),
	))
}

var _ graph.Observer = (*EngineMetrics)(nil)
