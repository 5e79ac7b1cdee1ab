// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"encoding/json"
	"sort"

	"github.com/jllopis/tripgraph/pkg/llm"
)

// Patch is a partial state update produced by a node. Fields absent from a
// patch leave the state unchanged. Setting an overwrite field to nil clears it.
type Patch map[string]any

// State is a read-only snapshot of the shared run state. A State value is never
// mutated after construction; merging produces a new State. Sequence accessors
// return copies so callers cannot alter a snapshot other nodes are reading.
type State struct {
	schema *Schema
	values map[string]any
}

// Schema returns the schema the state was built against.
func (s State) Schema() *Schema {
	return s.schema
}

// Has reports whether field carries a value.
func (s State) Has(field string) bool {
	_, ok := s.values[field]
	return ok
}

// Get returns the raw value of field. Values of KindAny fields are returned as
// stored and must be treated as read-only.
func (s State) Get(field string) (any, bool) {
	v, ok := s.values[field]
	return v, ok
}

// String returns a string field, reporting false when it is absent.
func (s State) String(field string) (string, bool) {
	v, ok := s.values[field].(string)
	return v, ok
}

// Int returns an int field, reporting false when it is absent.
func (s State) Int(field string) (int, bool) {
	v, ok := s.values[field].(int)
	return v, ok
}

// Bool returns a bool field; absent fields read as false.
func (s State) Bool(field string) bool {
	v, _ := s.values[field].(bool)
	return v
}

// Strings returns a copy of a strings field.
func (s State) Strings(field string) []string {
	v, _ := s.values[field].([]string)
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}

// Messages returns a copy of a messages field.
func (s State) Messages(field string) []llm.Message {
	v, _ := s.values[field].([]llm.Message)
	if v == nil {
		return nil
	}
	return append([]llm.Message(nil), v...)
}

// LastMessage returns the last entry of a messages field.
func (s State) LastMessage(field string) (llm.Message, bool) {
	v, _ := s.values[field].([]llm.Message)
	if len(v) == 0 {
		return llm.Message{}, false
	}
	return v[len(v)-1], true
}

// Len returns the length of a sequence field, or 0.
func (s State) Len(field string) int {
	switch v := s.values[field].(type) {
	case []string:
		return len(v)
	case []llm.Message:
		return len(v)
	}
	return 0
}

// Keys returns the fields carrying a value, sorted.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a shallow copy of all values.
func (s State) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the state as a JSON object keyed by field name.
func (s State) MarshalJSON() ([]byte, error) {
	if s.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.values)
}
