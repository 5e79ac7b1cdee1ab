// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// Definition is a declarative graph topology. Node behaviour and routing
// functions are resolved by name from a Registry.
type Definition struct {
	ID       string      `json:"id" yaml:"id"`
	Entry    string      `json:"entry" yaml:"entry"`
	Fields   []FieldDef  `json:"fields" yaml:"fields"`
	Nodes    []NodeDef   `json:"nodes" yaml:"nodes"`
	Edges    []EdgeDef   `json:"edges,omitempty" yaml:"edges,omitempty"`
	Branches []BranchDef `json:"branches,omitempty" yaml:"branches,omitempty"`
}

// FieldDef declares a state field.
type FieldDef struct {
	Name   string      `json:"name" yaml:"name"`
	Kind   Kind        `json:"kind" yaml:"kind"`
	Policy MergePolicy `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// NodeDef declares a node. Handler defaults to the node id.
type NodeDef struct {
	ID          string `json:"id" yaml:"id"`
	Handler     string `json:"handler,omitempty" yaml:"handler,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Timeout     string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	SoftTimeout bool   `json:"soft_timeout,omitempty" yaml:"soft_timeout,omitempty"`
}

// EdgeDef declares a static edge. "END" is accepted for the terminal marker.
type EdgeDef struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// BranchDef declares a conditional edge resolved through a named router.
type BranchDef struct {
	From   string            `json:"from" yaml:"from"`
	Router string            `json:"router" yaml:"router"`
	Routes map[string]string `json:"routes" yaml:"routes"`
}

// Registry maps handler and router names to functions.
type Registry struct {
	handlers map[string]NodeFunc
	routers  map[string]Router
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]NodeFunc),
		routers:  make(map[string]Router),
	}
}

// Handle registers a node function under name.
func (r *Registry) Handle(name string, fn NodeFunc) *Registry {
	r.handlers[name] = fn
	return r
}

// Router registers a routing function under name.
func (r *Registry) Router(name string, fn Router) *Registry {
	r.routers[name] = fn
	return r
}

// Build resolves the definition against reg into a StateGraph ready to
// compile.
func (d *Definition) Build(reg *Registry) (*StateGraph, error) {
	if d == nil {
		return nil, errors.New(errors.CodeInvalidGraph, "definition is nil", nil)
	}
	if reg == nil {
		reg = NewRegistry()
	}
	var err error

	schema := NewSchema()
	for _, f := range d.Fields {
		policy := f.Policy
		if policy == "" {
			policy = Overwrite
		}
		if declErr := schema.Declare(f.Name, f.Kind, policy); declErr != nil {
			err = multierr.Append(err, declErr)
		}
	}

	g := NewStateGraph(schema).WithID(d.ID)
	for _, n := range d.Nodes {
		handler := n.Handler
		if handler == "" {
			handler = n.ID
		}
		fn, ok := reg.handlers[handler]
		if !ok {
			err = multierr.Append(err, fmt.Errorf("node %q: handler %q not registered", n.ID, handler))
			continue
		}
		var opts []NodeOption
		if n.Description != "" {
			opts = append(opts, WithDescription(n.Description))
		}
		if n.Timeout != "" {
			timeout, perr := time.ParseDuration(n.Timeout)
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("node %q: invalid timeout: %w", n.ID, perr))
				continue
			}
			opts = append(opts, WithTimeout(timeout))
		}
		if n.SoftTimeout {
			opts = append(opts, WithSoftTimeout())
		}
		g.AddNode(n.ID, fn, opts...)
	}
	for _, e := range d.Edges {
		g.AddEdge(e.From, endAlias(e.To))
	}
	for _, b := range d.Branches {
		router, ok := reg.routers[b.Router]
		if !ok {
			err = multierr.Append(err, fmt.Errorf("branch from %q: router %q not registered", b.From, b.Router))
			continue
		}
		routes := make(map[string]string, len(b.Routes))
		for k, v := range b.Routes {
			routes[k] = endAlias(v)
		}
		g.AddConditionalEdges(b.From, router, routes)
	}
	g.SetEntryPoint(d.Entry)

	if err != nil {
		return nil, errors.New(errors.CodeInvalidGraph, "definition does not resolve", err)
	}
	return g, nil
}

// Compile builds and compiles the definition.
func (d *Definition) Compile(reg *Registry) (*CompiledGraph, error) {
	g, err := d.Build(reg)
	if err != nil {
		return nil, err
	}
	return g.Compile()
}

func endAlias(id string) string {
	if id == "END" {
		return END
	}
	return id
}

// LoadDefinition loads a definition from a YAML or JSON file.
func LoadDefinition(path string) (*Definition, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("definition path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseDefinitionJSON(data)
	case ".yaml", ".yml":
		return ParseDefinitionYAML(data)
	default:
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			return ParseDefinitionJSON(data)
		}
		return ParseDefinitionYAML(data)
	}
}

// ParseDefinitionJSON decodes a definition from JSON.
func ParseDefinitionJSON(data []byte) (*Definition, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse json definition: %w", err)
	}
	return &d, nil
}

// ParseDefinitionYAML decodes a definition from YAML.
func ParseDefinitionYAML(data []byte) (*Definition, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse yaml definition: %w", err)
	}
	return &d, nil
}

// Describe renders the topology of a compiled graph as a Definition. Handler
// and router names are not recoverable and are left empty.
func Describe(cg *CompiledGraph) *Definition {
	d := &Definition{ID: cg.id, Entry: cg.entry}
	for _, f := range cg.schema.Fields() {
		d.Fields = append(d.Fields, FieldDef{Name: f.Name, Kind: f.Kind, Policy: f.Policy})
	}
	for _, id := range cg.order {
		spec := cg.nodes[id]
		nd := NodeDef{ID: id, Description: spec.description, SoftTimeout: spec.softTimeout}
		if spec.timeout > 0 {
			nd.Timeout = spec.timeout.String()
		}
		d.Nodes = append(d.Nodes, nd)
		for _, to := range cg.successors[id] {
			d.Edges = append(d.Edges, EdgeDef{From: id, To: to})
		}
		if cg.IsConditional(id) {
			d.Branches = append(d.Branches, BranchDef{From: id, Routes: cg.Routes(id)})
		}
	}
	return d
}
