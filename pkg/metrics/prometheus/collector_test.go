// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
)

func TestCollectorRecordsRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith(reg)
	ctx := context.Background()

	c.RunStarted(ctx, "travel", "run-1")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeRuns))

	c.SuperstepCompleted(ctx, "travel", 0, 2)
	c.NodeFinished(ctx, "travel", "budget", graph.NodeCompleted, 30*time.Millisecond)
	c.NodeFinished(ctx, "travel", "risk", graph.NodeSoftFailed, 10*time.Millisecond)
	c.MergeConflict(ctx, "travel", graph.Conflict{Field: "intent", Winner: "risk", Overridden: []string{"budget"}})
	c.RunFinished(ctx, "travel", "run-1", 4, errors.New(errors.CodeSchedulerRunaway, "too many supersteps", nil))

	assert.Equal(t, 0.0, testutil.ToFloat64(c.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("travel", "failure", "SCHEDULER_RUNAWAY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.nodesExecuted.WithLabelValues("travel", "risk", "soft_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.mergeConflicts.WithLabelValues("travel", "intent")))

	count, err := testutil.GatherAndCount(reg, "tripgraph_node_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCollectorWithScheduler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith(reg)

	schema := graph.NewSchema().MustDeclare("answer", graph.KindString, graph.Overwrite)
	cg := graph.NewStateGraph(schema).
		WithID("echo").
		AddNode("answer", func(context.Context, graph.State) (graph.Patch, error) {
			return graph.Patch{"answer": "ok"}, nil
		}).
		AddEdge("answer", graph.END).
		SetEntryPoint("answer").
		MustCompile()

	_, err := graph.NewScheduler(cg, graph.WithObserver(c)).Run(context.Background(), "run-1", graph.State{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsStarted.WithLabelValues("echo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("echo", "success", "")))
}
