// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"encoding/json"
	"testing"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/llm"
)

func TestSchemaDeclare(t *testing.T) {
	s := NewSchema()
	if err := s.Declare("messages", KindMessages, Append); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := s.Declare("messages", KindMessages, Append); err != nil {
		t.Fatalf("identical re-declaration should be a no-op: %v", err)
	}
	if err := s.Declare("messages", KindMessages, Overwrite); !errors.IsCode(err, errors.CodeInvalidGraph) {
		t.Fatalf("expected INVALID_GRAPH for conflicting policy, got %v", err)
	}
	if err := s.Declare("days", KindInt, Append); err == nil {
		t.Fatal("expected error for append on a scalar kind")
	}
	if err := s.Declare("x", Kind("float"), Overwrite); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if len(s.Fields()) != 1 {
		t.Fatalf("expected 1 field, got %d", len(s.Fields()))
	}
}

func TestMergeOverwriteAndAppend(t *testing.T) {
	s := NewSchema().
		MustDeclare("messages", KindMessages, Append).
		MustDeclare("intent", KindString, Overwrite).
		MustDeclare("days", KindInt, Overwrite)

	prev, err := s.NewState(Patch{
		"messages": llm.Message{Role: llm.RoleUser, Content: "hi"},
		"intent":   "hotel",
		"days":     2,
	})
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	next, conflicts := s.merge(prev, []sourcedPatch{
		{source: "a", patch: Patch{"messages": []llm.Message{{Role: llm.RoleAssistant, Content: "one"}}, "intent": "visa"}},
		{source: "b", patch: Patch{"messages": []llm.Message{{Role: llm.RoleAssistant, Content: "two"}}, "intent": "itinerary"}},
	})

	msgs := next.Messages("messages")
	if len(msgs) != 3 || msgs[1].Content != "one" || msgs[2].Content != "two" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if intent, _ := next.String("intent"); intent != "itinerary" {
		t.Fatalf("expected later-declared writer to win, got %q", intent)
	}
	if days, _ := next.Int("days"); days != 2 {
		t.Fatalf("untouched field changed: %d", days)
	}
	if len(conflicts) != 1 || conflicts[0].Field != "intent" || conflicts[0].Winner != "b" {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}
	if prev.Len("messages") != 1 {
		t.Fatalf("previous snapshot mutated: %d messages", prev.Len("messages"))
	}
}

func TestApplyClearsOverwriteField(t *testing.T) {
	s := NewSchema().MustDeclare("destination", KindString, Overwrite)
	st, err := s.NewState(Patch{"destination": "Kyoto"})
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	st, err = s.Apply(st, Patch{"destination": nil})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := st.String("destination"); ok {
		t.Fatal("expected destination to be absent")
	}
}

func TestNormalizePatch(t *testing.T) {
	s := NewSchema().
		MustDeclare("tags", KindStrings, Append).
		MustDeclare("days", KindInt, Overwrite).
		MustDeclare("ok", KindBool, Overwrite)

	tests := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{name: "single string to sequence", patch: Patch{"tags": "beach"}},
		{name: "int64 coerced", patch: Patch{"days": int64(4)}},
		{name: "undeclared", patch: Patch{"nope": 1}, wantErr: true},
		{name: "bool mismatch", patch: Patch{"ok": "yes"}, wantErr: true},
		{name: "nil append", patch: Patch{"tags": nil}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.normalizePatch(tt.patch)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizePatch() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	s := NewSchema().
		MustDeclare("messages", KindMessages, Append).
		MustDeclare("days", KindInt, Overwrite).
		MustDeclare("travel", KindBool, Overwrite)
	st, err := s.NewState(Patch{
		"messages": llm.Message{Role: llm.RoleUser, Content: "Plan 3 days in Goa"},
		"days":     3,
		"travel":   true,
	})
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := s.DecodeState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if days, _ := decoded.Int("days"); days != 3 {
		t.Fatalf("unexpected days: %d", days)
	}
	if last, ok := decoded.LastMessage("messages"); !ok || last.Content != "Plan 3 days in Goa" {
		t.Fatalf("unexpected last message: %+v", last)
	}
	if !decoded.Bool("travel") {
		t.Fatal("expected travel flag")
	}
}
