// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

// CompiledGraph is an immutable, executable graph created by
// StateGraph.Compile. It is safe for concurrent use by many runs.
type CompiledGraph struct {
	id     string
	schema *Schema
	entry  string
	nodes  map[string]*nodeSpec
	order  []string

	// successors holds static edge targets, END included.
	successors map[string][]string
	conds      map[string]*conditional
	// predecessors holds every node with a static edge or a route into a node.
	predecessors map[string][]string
	// potential holds every node a node may activate: static targets plus
	// all route targets, END excluded.
	potential map[string][]string
}

func newCompiledGraph(g *StateGraph) *CompiledGraph {
	cg := &CompiledGraph{
		id:           g.id,
		schema:       g.schema,
		entry:        g.entry,
		nodes:        make(map[string]*nodeSpec, len(g.nodes)),
		order:        append([]string(nil), g.order...),
		successors:   make(map[string][]string, len(g.edges)),
		conds:        make(map[string]*conditional, len(g.conds)),
		predecessors: make(map[string][]string),
		potential:    make(map[string][]string),
	}
	for id, spec := range g.nodes {
		cp := *spec
		cg.nodes[id] = &cp
	}
	for from, tos := range g.edges {
		cg.successors[from] = append([]string(nil), tos...)
	}
	for from, c := range g.conds {
		cg.conds[from] = c
	}

	// Walk nodes in declaration order so predecessor lists are deterministic.
	for _, from := range cg.order {
		seen := make(map[string]bool)
		targets := append([]string(nil), cg.successors[from]...)
		if c, ok := cg.conds[from]; ok {
			for _, key := range sortedKeys(c.routes) {
				targets = append(targets, c.routes[key])
			}
		}
		for _, to := range targets {
			if to == END || seen[to] {
				continue
			}
			seen[to] = true
			cg.potential[from] = append(cg.potential[from], to)
			cg.predecessors[to] = append(cg.predecessors[to], from)
		}
	}
	return cg
}

// ID returns the graph identifier, possibly empty.
func (cg *CompiledGraph) ID() string {
	return cg.id
}

// Schema returns the state schema.
func (cg *CompiledGraph) Schema() *Schema {
	return cg.schema
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph) EntryPoint() string {
	return cg.entry
}

// NodeIDs returns all node identifiers in declaration order.
func (cg *CompiledGraph) NodeIDs() []string {
	return append([]string(nil), cg.order...)
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph) HasNode(id string) bool {
	_, ok := cg.nodes[id]
	return ok
}

// Node returns information about a registered node.
func (cg *CompiledGraph) Node(id string) (NodeInfo, bool) {
	spec, ok := cg.nodes[id]
	if !ok {
		return NodeInfo{}, false
	}
	return NodeInfo{ID: spec.id, Index: spec.index, Description: spec.description, Timeout: spec.timeout}, true
}

// Successors returns the static edge targets of a node, END included.
// Targets of conditional edges are decided at run time; see Routes.
func (cg *CompiledGraph) Successors(id string) []string {
	return append([]string(nil), cg.successors[id]...)
}

// Predecessors returns every node with a static edge or a route into id, in
// declaration order.
func (cg *CompiledGraph) Predecessors(id string) []string {
	return append([]string(nil), cg.predecessors[id]...)
}

// IsConditional reports whether the node routes through a conditional edge.
func (cg *CompiledGraph) IsConditional(id string) bool {
	_, ok := cg.conds[id]
	return ok
}

// Routes returns a copy of a node's route map.
func (cg *CompiledGraph) Routes(id string) map[string]string {
	c, ok := cg.conds[id]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(c.routes))
	for k, v := range c.routes {
		out[k] = v
	}
	return out
}

// Route evaluates a node's router against state and resolves the target.
// The boolean is false when the key is not mapped.
func (cg *CompiledGraph) Route(id string, state State) (key, target string, ok bool) {
	c, exists := cg.conds[id]
	if !exists {
		return "", "", false
	}
	key = c.router(state)
	target, ok = c.routes[key]
	return key, target, ok
}

// reachable returns the nodes reachable from the entry, in declaration order.
func (cg *CompiledGraph) reachable() []string {
	seen := map[string]bool{cg.entry: true}
	queue := []string{cg.entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range cg.potential[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, id := range cg.order {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}
