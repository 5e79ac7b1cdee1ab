// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/llm"
)

// State fields of the assistant graph.
const (
	FieldMessages    = "messages"
	FieldUserID      = "user_id"
	FieldName        = "traveller_name"
	FieldNationality = "nationality"

	FieldTravel      = "is_travel_related"
	FieldIntent      = "intent"
	FieldDestination = "destination"
	FieldDays        = "days"
	FieldBudgetType  = "budget_type"
	FieldPlace1      = "place1"
	FieldPlace2      = "place2"

	FieldItinerary  = "itinerary_text"
	FieldBudget     = "budget_text"
	FieldRisk       = "risk_text"
	FieldIncidentID = "incident_id"
	FieldSources    = "sources"
)

// DefaultDays is the trip length used when the query does not give one.
const DefaultDays = 3

// turnFields are recomputed on every turn and cleared before a follow-up
// message runs.
var turnFields = []string{
	FieldTravel,
	FieldIntent,
	FieldDestination,
	FieldDays,
	FieldBudgetType,
	FieldPlace1,
	FieldPlace2,
	FieldItinerary,
	FieldBudget,
	FieldRisk,
	FieldIncidentID,
}

// NewSchema declares the assistant state.
func NewSchema() *graph.Schema {
	return graph.NewSchema().
		MustDeclare(FieldMessages, graph.KindMessages, graph.Append).
		MustDeclare(FieldUserID, graph.KindString, graph.Overwrite).
		MustDeclare(FieldName, graph.KindString, graph.Overwrite).
		MustDeclare(FieldNationality, graph.KindString, graph.Overwrite).
		MustDeclare(FieldTravel, graph.KindBool, graph.Overwrite).
		MustDeclare(FieldIntent, graph.KindString, graph.Overwrite).
		MustDeclare(FieldDestination, graph.KindString, graph.Overwrite).
		MustDeclare(FieldDays, graph.KindInt, graph.Overwrite).
		MustDeclare(FieldBudgetType, graph.KindString, graph.Overwrite).
		MustDeclare(FieldPlace1, graph.KindString, graph.Overwrite).
		MustDeclare(FieldPlace2, graph.KindString, graph.Overwrite).
		MustDeclare(FieldItinerary, graph.KindString, graph.Overwrite).
		MustDeclare(FieldBudget, graph.KindString, graph.Overwrite).
		MustDeclare(FieldRisk, graph.KindString, graph.Overwrite).
		MustDeclare(FieldIncidentID, graph.KindString, graph.Overwrite).
		MustDeclare(FieldSources, graph.KindStrings, graph.Append)
}

func tripDays(s graph.State) int {
	if days, ok := s.Int(FieldDays); ok && days > 0 {
		return days
	}
	return DefaultDays
}

func lastUserText(s graph.State) string {
	msgs := s.Messages(FieldMessages)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
