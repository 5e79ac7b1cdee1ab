// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"testing"
)

func TestIsEmergencyQuery(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I lost my passport", true},
		{"I had an accident in London", true},
		{"My wallet was STOLEN at the station", true},
		{"Best time to visit Goa", false},
		{"Is the police museum in Paris worth it?", true},
		{"Ballroom dancing lessons in Vienna", false},
	}
	for _, tt := range tests {
		if got := IsEmergencyQuery(tt.text); got != tt.want {
			t.Errorf("IsEmergencyQuery(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExtractComparisonPlaces(t *testing.T) {
	tests := []struct {
		text   string
		p1, p2 string
		ok     bool
	}{
		{"Compare Jaipur and Udaipur", "Jaipur", "Udaipur", true},
		{"Goa vs Manali", "Goa", "Manali", true},
		{"compare Lisbon with Porto?", "Lisbon", "Porto", true},
		{"Rome versus Florence for a weekend", "Rome", "Florence for a weekend", true},
		{"Plan a trip to Goa", "", "", false},
	}
	for _, tt := range tests {
		p1, p2, ok := ExtractComparisonPlaces(tt.text)
		if ok != tt.ok || p1 != tt.p1 || p2 != tt.p2 {
			t.Errorf("ExtractComparisonPlaces(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.text, p1, p2, ok, tt.p1, tt.p2, tt.ok)
		}
	}
}

func TestExtractNumericBudget(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"My budget is 50000 INR", 50000, true},
		{"I can spend 1,200 euros on Lisbon", 1200, true},
		{"Plan a trip", 0, false},
		{"Plan 3 days in Goa", 0, false},
		{"budget trip to Goa", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractNumericBudget(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractNumericBudget(%q) = (%d, %v), want (%d, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRiskSummary(t *testing.T) {
	if got := (RiskAssessment{}).Summary(); got != NoActiveRisk {
		t.Fatalf("unexpected summary: %q", got)
	}
	r := RiskAssessment{HasActiveRisk: true, RiskDetails: []string{"Monsoon flooding", " "}}
	if got := r.Summary(); got != "- Monsoon flooding" {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestQueryValidate(t *testing.T) {
	if err := (&Query{IsTravelRelated: true, Intent: "shopping"}).Validate(); err == nil {
		t.Fatal("expected unknown intent to be rejected")
	}
	if err := (&Query{IsTravelRelated: true, Intent: IntentVisa}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (&Query{IsTravelRelated: false}).Validate(); err != nil {
		t.Fatalf("non travel queries need no intent: %v", err)
	}
}
