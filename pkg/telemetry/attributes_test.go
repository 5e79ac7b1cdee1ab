// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestRunAttributes(t *testing.T) {
	assertAttributes(t, RunAttributes("travel", "run-1"), map[string]any{
		AttrGraphID: "travel",
		AttrRunID:   "run-1",
	})
	if got := RunAttributes("travel", ""); len(got) != 1 {
		t.Fatalf("expected only graph id, got %v", got)
	}
}

func TestNodeAttributes(t *testing.T) {
	assertAttributes(t, NodeAttributes("travel", "risk", "soft_failed"), map[string]any{
		AttrGraphID:    "travel",
		AttrNodeID:     "risk",
		AttrNodeStatus: "soft_failed",
	})
}

func TestIntentAttributes(t *testing.T) {
	assertAttributes(t, IntentAttributes(true, "itinerary", "Goa"), map[string]any{
		AttrTravel:      true,
		AttrIntent:      "itinerary",
		AttrDestination: "Goa",
	})
	if got := IntentAttributes(false, "", ""); len(got) != 1 {
		t.Fatalf("expected only travel flag, got %v", got)
	}
}

func TestLLMAttributes(t *testing.T) {
	assertAttributes(t, LLMAttributes("llama-3.1-8b-instant", "groq", 3), map[string]any{
		AttrLLMModel:    "llama-3.1-8b-instant",
		AttrLLMProvider: "groq",
		AttrLLMMessages: 3,
	})
}

func TestLLMUsageAttributes(t *testing.T) {
	assertAttributes(t, LLMUsageAttributes(100, 50), map[string]any{
		AttrLLMTokensInput:  100,
		AttrLLMTokensOutput: 50,
		AttrLLMTokensTotal:  150,
	})
	if got := LLMUsageAttributes(0, 0); len(got) != 0 {
		t.Fatalf("expected no usage attributes, got %v", got)
	}
}

func TestSearchAttributesTruncatesQuery(t *testing.T) {
	attrs := SearchAttributes(strings.Repeat("q", 300), 4)
	for _, attr := range attrs {
		if string(attr.Key) == AttrSearchQuery && len(attr.Value.AsString()) > 203 {
			t.Errorf("query not truncated: len=%d", len(attr.Value.AsString()))
		}
	}
	assertAttributes(t, attrs, map[string]any{AttrSearchResults: 4})
}

// assertAttributes checks that expected key-value pairs exist in attrs
func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
