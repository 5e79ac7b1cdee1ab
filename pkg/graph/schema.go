// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/llm"
)

// Kind is the semantic type of a state field.
type Kind string

const (
	KindBool     Kind = "bool"
	KindString   Kind = "string"
	KindInt      Kind = "int"
	KindStrings  Kind = "strings"
	KindMessages Kind = "messages"
	KindAny      Kind = "any"
)

// MergePolicy decides how a patch value combines with the prior value.
type MergePolicy string

const (
	// Overwrite replaces the prior value unconditionally.
	Overwrite MergePolicy = "overwrite"
	// Append concatenates the patch value to the prior sequence.
	Append MergePolicy = "append"
)

// Field describes one declared state field.
type Field struct {
	Name   string      `json:"name" yaml:"name"`
	Kind   Kind        `json:"kind" yaml:"kind"`
	Policy MergePolicy `json:"policy" yaml:"policy"`
}

// Schema declares the fields of a state object and their merge policies.
type Schema struct {
	fields map[string]Field
	order  []string
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// Declare adds a field. Re-declaring a field with the same kind and policy is
// a no-op; a conflicting re-declaration is an error.
func (s *Schema) Declare(name string, kind Kind, policy MergePolicy) error {
	if name == "" {
		return errors.New(errors.CodeInvalidGraph, "field name is required", nil)
	}
	switch kind {
	case KindBool, KindString, KindInt, KindStrings, KindMessages, KindAny:
	default:
		return errors.New(errors.CodeInvalidGraph, fmt.Sprintf("field %q has unknown kind %q", name, kind), nil)
	}
	switch policy {
	case Overwrite:
	case Append:
		if kind != KindStrings && kind != KindMessages {
			return errors.New(errors.CodeInvalidGraph, fmt.Sprintf("field %q: append requires a sequence kind, got %q", name, kind), nil)
		}
	default:
		return errors.New(errors.CodeInvalidGraph, fmt.Sprintf("field %q has unknown merge policy %q", name, policy), nil)
	}

	if prev, ok := s.fields[name]; ok {
		if prev.Kind != kind || prev.Policy != policy {
			return errors.New(errors.CodeInvalidGraph,
				fmt.Sprintf("field %q already declared as %s/%s", name, prev.Kind, prev.Policy), nil).
				WithContext("field", name)
		}
		return nil
	}
	s.fields[name] = Field{Name: name, Kind: kind, Policy: policy}
	s.order = append(s.order, name)
	return nil
}

// MustDeclare is like Declare but panics on error. Useful for package-level
// schema definitions.
func (s *Schema) MustDeclare(name string, kind Kind, policy MergePolicy) *Schema {
	if err := s.Declare(name, kind, policy); err != nil {
		panic(err)
	}
	return s
}

// Field returns the declaration of name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

// NewState builds a state from initial values, validating each one.
// Append fields start from the given sequence.
func (s *Schema) NewState(values Patch) (State, error) {
	st := State{schema: s, values: make(map[string]any, len(values))}
	normalized, err := s.normalizePatch(values)
	if err != nil {
		return State{}, errors.New(errors.CodeInvalidGraph, "invalid state values", err)
	}
	for k, v := range normalized {
		if v == nil {
			continue
		}
		st.values[k] = v
	}
	return st, nil
}

// Apply merges a single patch into prev honouring merge policies.
func (s *Schema) Apply(prev State, patch Patch) (State, error) {
	normalized, err := s.normalizePatch(patch)
	if err != nil {
		return State{}, errors.New(errors.CodeInvalidGraph, "invalid patch", err)
	}
	next, _ := s.merge(prev, []sourcedPatch{{source: "", patch: normalized}})
	return next, nil
}

// DecodeState parses a JSON object produced by State.MarshalJSON.
func (s *Schema) DecodeState(data []byte) (State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	values := make(Patch, len(raw))
	for name, msg := range raw {
		f, ok := s.fields[name]
		if !ok {
			return State{}, errors.New(errors.CodeInvalidGraph, fmt.Sprintf("decode state: undeclared field %q", name), nil)
		}
		v, err := decodeValue(f, msg)
		if err != nil {
			return State{}, fmt.Errorf("decode state field %q: %w", name, err)
		}
		if v == nil {
			continue
		}
		values[name] = v
	}
	return s.NewState(values)
}

func decodeValue(f Field, msg json.RawMessage) (any, error) {
	if string(msg) == "null" {
		return nil, nil
	}
	switch f.Kind {
	case KindBool:
		var v bool
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindString:
		var v string
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindInt:
		var v int
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindStrings:
		var v []string
		err := json.Unmarshal(msg, &v)
		return v, err
	case KindMessages:
		var v []llm.Message
		err := json.Unmarshal(msg, &v)
		return v, err
	default:
		var v any
		err := json.Unmarshal(msg, &v)
		return v, err
	}
}

// normalizePatch checks every field of patch against the schema and coerces
// values into their canonical Go type. It never touches shared state.
func (s *Schema) normalizePatch(patch Patch) (Patch, error) {
	if len(patch) == 0 {
		return nil, nil
	}
	out := make(Patch, len(patch))
	for name, value := range patch {
		f, ok := s.fields[name]
		if !ok {
			return nil, fmt.Errorf("undeclared field %q", name)
		}
		v, err := normalizeValue(f, value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func normalizeValue(f Field, value any) (any, error) {
	if value == nil {
		if f.Policy == Append {
			return nil, fmt.Errorf("nil is not a valid append value")
		}
		return nil, nil
	}
	switch f.Kind {
	case KindBool:
		v, ok := value.(bool)
		if !ok {
			return nil, typeError(f, value)
		}
		return v, nil
	case KindString:
		switch v := value.(type) {
		case string:
			return v, nil
		case *string:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		}
		return nil, typeError(f, value)
	case KindInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		case *int:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		}
		return nil, typeError(f, value)
	case KindStrings:
		switch v := value.(type) {
		case string:
			return []string{v}, nil
		case []string:
			return append([]string(nil), v...), nil
		}
		return nil, typeError(f, value)
	case KindMessages:
		switch v := value.(type) {
		case llm.Message:
			return []llm.Message{v}, nil
		case []llm.Message:
			return append([]llm.Message(nil), v...), nil
		}
		return nil, typeError(f, value)
	default:
		return value, nil
	}
}

func typeError(f Field, value any) error {
	return fmt.Errorf("expected %s value, got %T", f.Kind, value)
}

// sourcedPatch is a normalized patch together with the node that produced it.
type sourcedPatch struct {
	source string
	patch  Patch
}

// Conflict records two or more nodes of one superstep writing the same
// overwrite field. Winner is the latest-declared writer.
type Conflict struct {
	Field      string   `json:"field"`
	Winner     string   `json:"winner"`
	Overridden []string `json:"overridden"`
}

// merge applies patches, already sorted by node declaration order, to prev.
// The result depends only on prev, the patches and their order.
func (s *Schema) merge(prev State, patches []sourcedPatch) (State, []Conflict) {
	next := State{schema: s, values: make(map[string]any, len(prev.values)+4)}
	for k, v := range prev.values {
		next.values[k] = v
	}

	writers := make(map[string][]string)
	for _, sp := range patches {
		// Iterate fields in a fixed order so append results never depend on map order.
		names := make([]string, 0, len(sp.patch))
		for name := range sp.patch {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			value := sp.patch[name]
			f := s.fields[name]
			if f.Policy == Append {
				next.values[name] = appendValue(f, next.values[name], value)
				continue
			}
			writers[name] = append(writers[name], sp.source)
			if value == nil {
				delete(next.values, name)
				continue
			}
			next.values[name] = value
		}
	}

	var conflicts []Conflict
	for _, name := range s.order {
		w := writers[name]
		if len(w) < 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Field:      name,
			Winner:     w[len(w)-1],
			Overridden: append([]string(nil), w[:len(w)-1]...),
		})
	}
	return next, conflicts
}

// appendValue returns a fresh slice so that earlier snapshots sharing the
// prior backing array are never affected.
func appendValue(f Field, prior, value any) any {
	switch f.Kind {
	case KindStrings:
		old, _ := prior.([]string)
		add := value.([]string)
		out := make([]string, 0, len(old)+len(add))
		return append(append(out, old...), add...)
	case KindMessages:
		old, _ := prior.([]llm.Message)
		add := value.([]llm.Message)
		out := make([]llm.Message, 0, len(old)+len(add))
		return append(append(out, old...), add...)
	}
	return value
}
