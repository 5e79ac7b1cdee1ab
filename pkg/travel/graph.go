// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
)

// GraphID identifies the assistant graph in runs, logs and metrics.
const GraphID = "travel-assistant"

// DefaultEnrichTimeout bounds the budget and risk nodes.
const DefaultEnrichTimeout = 45 * time.Second

// GraphOption customises the assistant graph.
type GraphOption func(*graphOptions)

type graphOptions struct {
	enrichTimeout time.Duration
}

// WithEnrichTimeout sets the soft timeout of the budget and risk nodes.
// A timed-out enrichment leaves its field empty and the answer is still
// combined.
func WithEnrichTimeout(d time.Duration) GraphOption {
	return func(o *graphOptions) {
		if d > 0 {
			o.enrichTimeout = d
		}
	}
}

// NewGraph compiles the assistant topology:
//
//	classify -> itinerary -> {budget, risk} -> combine -> END
//	classify -> executor | emergency | non_travel -> END
func NewGraph(n *Nodes, opts ...GraphOption) (*graph.CompiledGraph, error) {
	o := graphOptions{enrichTimeout: DefaultEnrichTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	g := graph.NewStateGraph(NewSchema()).
		WithID(GraphID).
		AddNode(NodeClassify, n.Classify, graph.WithDescription("classify intent and extract trip details")).
		AddNode(NodeItinerary, n.Itinerary, graph.WithDescription("draft a day by day itinerary")).
		AddNode(NodeBudget, n.Budget,
			graph.WithDescription("estimate trip costs"),
			graph.WithTimeout(o.enrichTimeout), graph.WithSoftTimeout()).
		AddNode(NodeRisk, n.Risk,
			graph.WithDescription("check travel advisories"),
			graph.WithTimeout(o.enrichTimeout), graph.WithSoftTimeout()).
		AddNode(NodeCombine, n.Combine, graph.WithDescription("assemble the final answer")).
		AddNode(NodeExecutor, n.Executor, graph.WithDescription("answer from search results")).
		AddNode(NodeEmergency, n.Emergency, graph.WithDescription("log an incident and give urgent guidance")).
		AddNode(NodeNonTravel, n.NonTravel, graph.WithDescription("decline out of domain queries")).
		AddConditionalEdges(NodeClassify, RouteIntent, RouteTable()).
		AddEdge(NodeItinerary, NodeBudget).
		AddEdge(NodeItinerary, NodeRisk).
		AddEdge(NodeBudget, NodeCombine).
		AddEdge(NodeRisk, NodeCombine).
		AddEdge(NodeCombine, graph.END).
		AddEdge(NodeExecutor, graph.END).
		AddEdge(NodeEmergency, graph.END).
		AddEdge(NodeNonTravel, graph.END).
		SetEntryPoint(NodeClassify)

	cg, err := g.Compile()
	if err != nil {
		return nil, err
	}
	if err := CheckRoutes(cg); err != nil {
		return nil, err
	}
	return cg, nil
}

// CompileDefinition compiles a declarative topology against the assistant
// nodes. Handlers are the node ids above and the router is named "intent".
func CompileDefinition(def *graph.Definition, n *Nodes) (*graph.CompiledGraph, error) {
	cg, err := def.Compile(n.Registry())
	if err != nil {
		return nil, err
	}
	if err := CheckFields(cg.Schema()); err != nil {
		return nil, err
	}
	if err := CheckRoutes(cg); err != nil {
		return nil, err
	}
	return cg, nil
}

// CheckFields verifies that schema declares every assistant field with the
// kind and merge policy the nodes expect. Extra fields are allowed.
func CheckFields(schema *graph.Schema) error {
	var bad []string
	for _, want := range NewSchema().Fields() {
		got, ok := schema.Field(want.Name)
		switch {
		case !ok:
			bad = append(bad, want.Name+" (missing)")
		case got.Kind != want.Kind || got.Policy != want.Policy:
			bad = append(bad, fmt.Sprintf("%s (%s/%s, want %s/%s)", want.Name, got.Kind, got.Policy, want.Kind, want.Policy))
		}
	}
	if len(bad) > 0 {
		return errors.New(errors.CodeInvalidGraph,
			"state fields do not match the assistant schema: "+strings.Join(bad, ", "), nil).
			WithContext("fields", bad)
	}
	return nil
}

// CheckRoutes verifies that the classify node has a route for every intent.
func CheckRoutes(cg *graph.CompiledGraph) error {
	if !cg.IsConditional(NodeClassify) {
		return errors.New(errors.CodeInvalidGraph, fmt.Sprintf("node %q must branch on intent", NodeClassify), nil)
	}
	routes := cg.Routes(NodeClassify)
	var missing []string
	for _, in := range AllIntents() {
		if _, ok := routes[string(in)]; !ok {
			missing = append(missing, string(in))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.New(errors.CodeInvalidGraph,
			"intents without a route: "+strings.Join(missing, ", "), nil).
			WithContext("intents", missing)
	}
	return nil
}
