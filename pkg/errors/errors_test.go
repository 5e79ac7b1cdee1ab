// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("network timeout")
	e := New(CodeTimeout, "search timed out", cause)

	if e.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", e.Code)
	}
	if e.Message != "search timed out" {
		t.Errorf("expected message 'search timed out', got %q", e.Message)
	}
	if e.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(e, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	e := New(CodeRoutingError, "unmapped route", nil)
	e.WithContext("node", "classify").
		WithContext("key", "cruise")

	if e.Context["node"] != "classify" {
		t.Errorf("expected context node to be 'classify'")
	}
	if e.Context["key"] != "cruise" {
		t.Errorf("expected context key to be 'cruise'")
	}
}

func TestSoftAndFatal(t *testing.T) {
	soft := Soft("search degraded", errors.New("503"))
	if !soft.Recoverable || soft.Code != CodeNodeSoftFailure {
		t.Fatalf("unexpected soft failure: %+v", soft)
	}
	if !IsSoft(fmt.Errorf("node budget: %w", soft)) {
		t.Fatalf("expected wrapped soft failure to be detected")
	}

	fatal := Fatal("missing destination", nil)
	if fatal.Recoverable || fatal.Code != CodeNodeFatalFailure {
		t.Fatalf("unexpected fatal failure: %+v", fatal)
	}
	if IsSoft(fatal) {
		t.Fatalf("fatal failure reported as soft")
	}
	if IsSoft(errors.New("plain")) {
		t.Fatalf("untyped error reported as soft")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		e        *Error
		expected string
	}{
		{
			name:     "with cause",
			e:        New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			e:        New(CodeNotFound, "run not found", nil),
			expected: "[NOT_FOUND] run not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.e.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	e := New(CodeSchedulerRunaway, "superstep limit exceeded", nil).
		WithContext("max_supersteps", 25)

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["code"] != "SCHEDULER_RUNAWAY" {
		t.Errorf("expected code SCHEDULER_RUNAWAY, got %v", decoded["code"])
	}
	if decoded["recoverable"] != false {
		t.Errorf("expected recoverable false, got %v", decoded["recoverable"])
	}
	if _, ok := decoded["error"]; ok {
		t.Errorf("expected no error field without cause")
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}

	original := New(CodeLLMError, "provider failed", nil)
	wrapped := fmt.Errorf("classify: %w", original)
	if got := AsError(wrapped); got != original {
		t.Errorf("expected AsError to find wrapped *Error")
	}

	plain := errors.New("boom")
	got := AsError(plain)
	if got.Code != CodeInternal {
		t.Errorf("expected CodeInternal, got %v", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Errorf("expected wrapped plain error")
	}
}

func TestIsCode(t *testing.T) {
	inner := New(CodeTimeout, "node deadline", nil)
	outer := Fatal("budget failed", inner)

	if !IsCode(outer, CodeNodeFatalFailure) {
		t.Errorf("expected outer code match")
	}
	if !IsCode(outer, CodeTimeout) {
		t.Errorf("expected nested code match")
	}
	if IsCode(outer, CodeRoutingError) {
		t.Errorf("unexpected code match")
	}
	if CodeOf(errors.New("x")) != CodeInternal {
		t.Errorf("expected CodeInternal for untyped error")
	}
}

func TestRunError(t *testing.T) {
	cause := New(CodeRoutingError, "route \"cruise\" not mapped", nil)
	re := &RunError{RunID: "run-1", Superstep: 0, NodeID: "classify", Err: cause}

	want := `run run-1 aborted after superstep 0 at node "classify": [ROUTING_ERROR] route "cruise" not mapped`
	if re.Error() != want {
		t.Errorf("expected %q, got %q", want, re.Error())
	}
	if re.Code() != CodeRoutingError {
		t.Errorf("expected routing code, got %v", re.Code())
	}

	var target *Error
	if !errors.As(re, &target) || target != cause {
		t.Errorf("expected errors.As to reach the cause")
	}
}
