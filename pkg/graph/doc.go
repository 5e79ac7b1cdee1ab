// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package graph implements a state-graph execution engine.
//
// A graph is declared with a StateGraph: a Schema of typed fields with
// overwrite or append merge policies, nodes that map a State snapshot to a
// Patch, and static or conditional edges. Compile validates the topology and
// returns an immutable CompiledGraph.
//
// A Scheduler runs a compiled graph in supersteps. Every node of the frontier
// runs concurrently against the same snapshot; patches are merged in node
// declaration order once all of them have returned; edges then select the
// next frontier. A node with several predecessors waits until each of them
// has completed or can no longer run, and every node executes at most once
// per run.
package graph
