// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// END marks the terminal of a path.
const END = "__end__"

// StateGraph registers nodes and edges before compilation. Builder errors are
// collected and reported together by Compile.
type StateGraph struct {
	id       string
	schema   *Schema
	nodes    map[string]*nodeSpec
	order    []string
	edges    map[string][]string
	conds    map[string]*conditional
	entry    string
	buildErr error
}

// NewStateGraph creates a builder over schema.
func NewStateGraph(schema *Schema) *StateGraph {
	return &StateGraph{
		schema: schema,
		nodes:  make(map[string]*nodeSpec),
		edges:  make(map[string][]string),
		conds:  make(map[string]*conditional),
	}
}

// WithID names the graph for audit and tracing.
func (g *StateGraph) WithID(id string) *StateGraph {
	g.id = id
	return g
}

// AddNode registers a node. Declaration order is the merge order.
func (g *StateGraph) AddNode(id string, fn NodeFunc, opts ...NodeOption) *StateGraph {
	switch {
	case id == "":
		g.fail("node id is required")
		return g
	case id == END:
		g.fail("node id %q is reserved", END)
		return g
	case fn == nil:
		g.fail("node %q has nil function", id)
		return g
	}
	if _, ok := g.nodes[id]; ok {
		g.fail("node %q declared twice", id)
		return g
	}
	spec := &nodeSpec{id: id, fn: fn, index: len(g.order)}
	for _, opt := range opts {
		opt(spec)
	}
	g.nodes[id] = spec
	g.order = append(g.order, id)
	return g
}

// AddEdge adds a static edge. Multiple static edges from one node fan out.
func (g *StateGraph) AddEdge(from, to string) *StateGraph {
	if from == "" || to == "" {
		g.fail("edge must include from/to")
		return g
	}
	for _, existing := range g.edges[from] {
		if existing == to {
			return g
		}
	}
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdges routes from a node through router. The key returned by
// router selects the target from routes; an unmapped key is a routing error.
func (g *StateGraph) AddConditionalEdges(from string, router Router, routes map[string]string) *StateGraph {
	if from == "" {
		g.fail("conditional edge must include from")
		return g
	}
	if router == nil {
		g.fail("conditional edge from %q has nil router", from)
		return g
	}
	if len(routes) == 0 {
		g.fail("conditional edge from %q has no routes", from)
		return g
	}
	if _, ok := g.conds[from]; ok {
		g.fail("node %q already has a conditional edge", from)
		return g
	}
	copied := make(map[string]string, len(routes))
	for k, v := range routes {
		copied[k] = v
	}
	g.conds[from] = &conditional{router: router, routes: copied}
	return g
}

// SetEntryPoint sets the node that starts every run.
func (g *StateGraph) SetEntryPoint(id string) *StateGraph {
	g.entry = id
	return g
}

func (g *StateGraph) fail(format string, args ...any) {
	g.buildErr = multierr.Append(g.buildErr, fmt.Errorf(format, args...))
}

// Compile validates the graph and returns an immutable executable graph.
func (g *StateGraph) Compile() (*CompiledGraph, error) {
	err := g.buildErr
	if g.schema == nil {
		err = multierr.Append(err, fmt.Errorf("schema is required"))
	}
	if len(g.nodes) == 0 {
		err = multierr.Append(err, fmt.Errorf("graph has no nodes"))
	}
	if g.entry == "" {
		err = multierr.Append(err, fmt.Errorf("entry point is required"))
	} else if _, ok := g.nodes[g.entry]; !ok {
		err = multierr.Append(err, fmt.Errorf("entry node %q not found", g.entry))
	}

	for _, from := range sortedKeys(g.edges) {
		if _, ok := g.nodes[from]; !ok {
			err = multierr.Append(err, fmt.Errorf("edge from %q not found", from))
		}
		if _, ok := g.conds[from]; ok {
			err = multierr.Append(err, fmt.Errorf("node %q has both static and conditional edges", from))
		}
		for _, to := range g.edges[from] {
			if to != END {
				if _, ok := g.nodes[to]; !ok {
					err = multierr.Append(err, fmt.Errorf("edge to %q not found", to))
				}
			}
		}
	}
	for _, from := range sortedKeys(g.conds) {
		if _, ok := g.nodes[from]; !ok {
			err = multierr.Append(err, fmt.Errorf("conditional edge from %q not found", from))
		}
		for _, key := range sortedKeys(g.conds[from].routes) {
			to := g.conds[from].routes[key]
			if to == END {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				err = multierr.Append(err, fmt.Errorf("route %q from %q targets unknown node %q", key, from, to))
			}
		}
	}
	if err != nil {
		return nil, errors.New(errors.CodeInvalidGraph, "graph validation failed", err)
	}

	cg := newCompiledGraph(g)
	for _, id := range cg.reachable() {
		if len(cg.successors[id]) == 0 && !cg.IsConditional(id) {
			err = multierr.Append(err, fmt.Errorf("node %q is reachable but has no outgoing edge", id))
		}
	}
	if err != nil {
		return nil, errors.New(errors.CodeInvalidGraph, "graph validation failed", err)
	}
	return cg, nil
}

// MustCompile is like Compile but panics on error.
func (g *StateGraph) MustCompile() *CompiledGraph {
	cg, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return cg
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
