// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"time"
)

// NodeStatus is the outcome of one node execution.
type NodeStatus string

const (
	NodeStarted    NodeStatus = "started"
	NodeCompleted  NodeStatus = "completed"
	NodeSoftFailed NodeStatus = "soft_failed"
	NodeFailed     NodeStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStarted, NodeCompleted, NodeSoftFailed, NodeFailed:
		return true
	}
	return false
}

// Observer receives scheduler lifecycle callbacks, typically to record
// metrics. Callbacks run on the scheduler goroutine and must not block.
type Observer interface {
	RunStarted(ctx context.Context, graphID, runID string)
	RunFinished(ctx context.Context, graphID, runID string, supersteps int, err error)
	SuperstepCompleted(ctx context.Context, graphID string, superstep, frontier int)
	NodeFinished(ctx context.Context, graphID, nodeID string, status NodeStatus, elapsed time.Duration)
	MergeConflict(ctx context.Context, graphID string, conflict Conflict)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) RunStarted(context.Context, string, string)                              {}
func (NopObserver) RunFinished(context.Context, string, string, int, error)                 {}
func (NopObserver) SuperstepCompleted(context.Context, string, int, int)                    {}
func (NopObserver) NodeFinished(context.Context, string, string, NodeStatus, time.Duration) {}
func (NopObserver) MergeConflict(context.Context, string, Conflict)                         {}

// MultiObserver fans callbacks out to several observers.
type MultiObserver []Observer

func (m MultiObserver) RunStarted(ctx context.Context, graphID, runID string) {
	for _, o := range m {
		o.RunStarted(ctx, graphID, runID)
	}
}

func (m MultiObserver) RunFinished(ctx context.Context, graphID, runID string, supersteps int, err error) {
	for _, o := range m {
		o.RunFinished(ctx, graphID, runID, supersteps, err)
	}
}

func (m MultiObserver) SuperstepCompleted(ctx context.Context, graphID string, superstep, frontier int) {
	for _, o := range m {
		o.SuperstepCompleted(ctx, graphID, superstep, frontier)
	}
}

func (m MultiObserver) NodeFinished(ctx context.Context, graphID, nodeID string, status NodeStatus, elapsed time.Duration) {
	for _, o := range m {
		o.NodeFinished(ctx, graphID, nodeID, status, elapsed)
	}
}

func (m MultiObserver) MergeConflict(ctx context.Context, graphID string, conflict Conflict) {
	for _, o := range m {
		o.MergeConflict(ctx, graphID, conflict)
	}
}
