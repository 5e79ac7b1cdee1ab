// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"fmt"
	"strings"
)

// Query is the structured classification of a user message.
type Query struct {
	IsTravelRelated bool    `json:"is_travel_related"`
	Intent          Intent  `json:"intent"`
	Destination     *string `json:"destination,omitempty"`
	Days            *int    `json:"days,omitempty"`
	BudgetType      *string `json:"budget_type,omitempty"`
	Place1          *string `json:"place1,omitempty"`
	Place2          *string `json:"place2,omitempty"`
}

const querySchema = `{"is_travel_related": bool, "intent": "itinerary|visa|hotel|comparison|emergency|attraction|general", ` +
	`"destination": string|null, "days": int|null, "budget_type": string|null, "place1": string|null, "place2": string|null}`

// Validate implements llm.Validator.
func (q *Query) Validate() error {
	if !q.IsTravelRelated {
		return nil
	}
	for _, in := range TravelIntents() {
		if q.Intent == in {
			return nil
		}
	}
	return fmt.Errorf("unknown intent %q", q.Intent)
}

// RiskAssessment is the structured result of the risk check.
type RiskAssessment struct {
	HasActiveRisk bool     `json:"has_active_risk"`
	RiskDetails   []string `json:"risk_details,omitempty"`
}

const riskSchema = `{"has_active_risk": bool, "risk_details": [string]}`

// NoActiveRisk is reported when no advisory is in force.
const NoActiveRisk = "No major active travel advisories."

// Summary renders the assessment for the final answer.
func (r RiskAssessment) Summary() string {
	if !r.HasActiveRisk || len(r.RiskDetails) == 0 {
		return NoActiveRisk
	}
	lines := make([]string, 0, len(r.RiskDetails))
	for _, d := range r.RiskDetails {
		if d = strings.TrimSpace(d); d != "" {
			lines = append(lines, "- "+d)
		}
	}
	if len(lines) == 0 {
		return NoActiveRisk
	}
	return strings.Join(lines, "\n")
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
