// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/incident"
	"github.com/jllopis/tripgraph/pkg/llm"
	"github.com/jllopis/tripgraph/pkg/run"
	"github.com/jllopis/tripgraph/pkg/run/store"
)

// routedLLM classifies by keyword so that cases may run in any order.
type routedLLM struct {
	*fakeLLM
}

func (r *routedLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if r.kind(req) != "classify" {
		return r.fakeLLM.Chat(ctx, req)
	}
	var question string
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			question = m.Content
		}
	}
	switch {
	case strings.Contains(question, "Goa"):
		return &llm.ChatResponse{Content: `{"is_travel_related": true, "intent": "itinerary", "destination": "Goa"}`}, nil
	case strings.Contains(question, "visa"):
		return &llm.ChatResponse{Content: `{"is_travel_related": true, "intent": "visa"}`}, nil
	case strings.Contains(question, "passport"):
		return &llm.ChatResponse{Content: `{"is_travel_related": true, "intent": "emergency", "destination": "Rome"}`}, nil
	}
	return &llm.ChatResponse{Content: `{"is_travel_related": false}`}, nil
}

func TestLoadCases(t *testing.T) {
	cases, err := LoadCases(filepath.Join("testdata", "cases.json"))
	require.NoError(t, err)
	require.Len(t, cases, 4)
	assert.Equal(t, "non_travel", cases[3].Type)
	assert.Equal(t, []string{"day 1", "budget"}, cases[0].ExpectedContains)

	_, err = LoadCases(filepath.Join("testdata", "missing.json"))
	require.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	f := &routedLLM{fakeLLM: newFakeLLM()}
	sink := incident.NewFileSink(filepath.Join(t.TempDir(), "incidents.json"))
	cg, err := NewGraph(NewNodes(Deps{LLM: f, Search: staticSearch, Incidents: sink}))
	require.NoError(t, err)
	a := NewAssistant(run.NewController(cg, run.WithStore(store.NewMemory())), nil)

	cases, err := LoadCases(filepath.Join("testdata", "cases.json"))
	require.NoError(t, err)
	report, err := Evaluate(context.Background(), a, cases, WithEvalConcurrency(2), WithJudge(f))
	require.NoError(t, err)

	require.Len(t, report.Results, 4)
	for _, res := range report.Results {
		assert.Empty(t, res.Error, res.Case.Input)
	}
	assert.Equal(t, 4, report.Passed)
	assert.InDelta(t, 1.0, report.Accuracy(), 1e-9)
	assert.Zero(t, report.SafetyFailures)
	assert.Equal(t, 3, report.TP)
	assert.Equal(t, 1, report.TN)
	assert.Zero(t, report.FP+report.FN)
	assert.InDelta(t, 1.0, report.F1(), 1e-9)
	assert.InDelta(t, 4.0, report.AverageQuality(), 1e-9)
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("Call the EMERGENCY number", []string{"emergency"}))
	assert.False(t, ContainsAny("Enjoy Goa", []string{"visa", ""}))
	assert.False(t, ContainsAny("anything", nil))
}

func TestSafetyCheck(t *testing.T) {
	assert.False(t, safe(Case{Type: "itinerary"}, "Day 1: beach"))
	assert.True(t, safe(Case{Type: "itinerary"}, "Travel Advisory: none"))
	assert.False(t, safe(Case{Type: "emergency"}, "Stay calm"))
	assert.True(t, safe(Case{Type: "visa"}, "Apply online"))
}
