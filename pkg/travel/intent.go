// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import "github.com/jllopis/tripgraph/pkg/graph"

// Intent is what a travel query asks for. The set is closed; every value has
// exactly one entry in the route table.
type Intent string

const (
	IntentItinerary  Intent = "itinerary"
	IntentVisa       Intent = "visa"
	IntentHotel      Intent = "hotel"
	IntentComparison Intent = "comparison"
	IntentEmergency  Intent = "emergency"
	IntentAttraction Intent = "attraction"
	IntentGeneral    Intent = "general"
	// IntentNonTravel routes queries outside the travel domain.
	IntentNonTravel Intent = "non_travel"
)

// AllIntents lists every intent, non-travel included.
func AllIntents() []Intent {
	return []Intent{
		IntentItinerary,
		IntentVisa,
		IntentHotel,
		IntentComparison,
		IntentEmergency,
		IntentAttraction,
		IntentGeneral,
		IntentNonTravel,
	}
}

// TravelIntents lists the intents a classifier may assign to a travel query.
func TravelIntents() []Intent {
	return AllIntents()[:7]
}

// ParseIntent returns the intent named s.
func ParseIntent(s string) (Intent, bool) {
	for _, in := range AllIntents() {
		if string(in) == s {
			return in, true
		}
	}
	return "", false
}

// Node ids of the assistant graph.
const (
	NodeClassify  = "classify"
	NodeItinerary = "itinerary"
	NodeBudget    = "budget"
	NodeRisk      = "risk"
	NodeCombine   = "combine"
	NodeExecutor  = "executor"
	NodeEmergency = "emergency"
	NodeNonTravel = "non_travel"
)

var routeTable = map[Intent]string{
	IntentItinerary:  NodeItinerary,
	IntentVisa:       NodeExecutor,
	IntentHotel:      NodeExecutor,
	IntentComparison: NodeExecutor,
	IntentEmergency:  NodeEmergency,
	IntentAttraction: NodeExecutor,
	IntentGeneral:    NodeExecutor,
	IntentNonTravel:  NodeNonTravel,
}

// RouteTable returns the intent to node mapping used after classification,
// keyed by routing key.
func RouteTable() map[string]string {
	out := make(map[string]string, len(routeTable))
	for in, node := range routeTable {
		out[string(in)] = node
	}
	return out
}

// RouteIntent is the router of the classify node. A query that is not
// travel related always routes to non_travel.
func RouteIntent(s graph.State) string {
	if !s.Bool(FieldTravel) {
		return string(IntentNonTravel)
	}
	intent, ok := s.String(FieldIntent)
	if !ok {
		return string(IntentGeneral)
	}
	return intent
}
