// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/incident"
	"github.com/jllopis/tripgraph/pkg/llm"
	"github.com/jllopis/tripgraph/pkg/resilience"
	"github.com/jllopis/tripgraph/pkg/search"
	"github.com/jllopis/tripgraph/pkg/telemetry"
)

// Deps are the collaborators the assistant nodes call.
type Deps struct {
	LLM llm.Provider
	// Search grounds budget, risk and general answers. Failures never abort
	// a node; nil disables search.
	Search        search.Searcher
	SearchTimeout time.Duration
	MaxResults    int
	// Incidents receives emergency cases; nil disables logging.
	Incidents incident.Sink
	Logger    *slog.Logger
	// Model and Provider label LLM spans.
	Model    string
	Provider string
}

// Nodes implements the assistant's node functions.
type Nodes struct {
	llm        llm.Provider
	search     search.Searcher
	maxResults int
	incidents  incident.Sink
	logger     *slog.Logger
	tracer     trace.Tracer
	model      string
	provider   string
}

// NewNodes wires deps into node functions. Search is always wrapped so that
// a failing or slow provider yields no results instead of an error.
func NewNodes(d Deps) *Nodes {
	n := &Nodes{
		llm:        d.LLM,
		maxResults: d.MaxResults,
		incidents:  d.Incidents,
		logger:     d.Logger,
		tracer:     otel.Tracer("tripgraph/travel"),
		model:      d.Model,
		provider:   d.Provider,
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.maxResults <= 0 {
		n.maxResults = 5
	}
	searcher := d.Search
	if searcher == nil {
		searcher = search.None
	}
	n.search = search.FailSoft(searcher, resilience.Policy{Timeout: d.SearchTimeout}, n.logger)
	return n
}

// Registry exposes the node functions and the intent router by name.
func (n *Nodes) Registry() *graph.Registry {
	return graph.NewRegistry().
		Handle(NodeClassify, n.Classify).
		Handle(NodeItinerary, n.Itinerary).
		Handle(NodeBudget, n.Budget).
		Handle(NodeRisk, n.Risk).
		Handle(NodeCombine, n.Combine).
		Handle(NodeExecutor, n.Executor).
		Handle(NodeEmergency, n.Emergency).
		Handle(NodeNonTravel, n.NonTravel).
		Router("intent", RouteIntent)
}

// Classify extracts the intent and trip details of the last user message.
// When the model reply cannot be parsed, a yes/no domain check decides
// between a general travel answer and the non-travel reply.
func (n *Nodes) Classify(ctx context.Context, s graph.State) (graph.Patch, error) {
	question := lastUserText(s)
	ctx, span := n.startLLMSpan(ctx, "travel.classify", 2)
	defer span.End()

	msgs := append(s.Messages(FieldMessages), llm.System(classifyPrompt))
	res, err := llm.Extract[Query](ctx, n.llm, msgs, querySchema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Fatal("classification failed", err)
	}

	q, ok := res.Value()
	if !ok {
		n.logger.WarnContext(ctx, "travel.classify.invalid", slog.String("reason", res.Reason()))
		q, err = n.domainCheck(ctx, question)
		if err != nil {
			return nil, errors.Fatal("domain check failed", err)
		}
	}

	patch := graph.Patch{
		FieldTravel: q.IsTravelRelated,
		FieldIntent: string(q.Intent),
	}
	if !q.IsTravelRelated {
		patch[FieldIntent] = string(IntentNonTravel)
	}
	setOptional(patch, FieldDestination, optional(q.Destination))
	setOptional(patch, FieldBudgetType, optional(q.BudgetType))
	setOptional(patch, FieldPlace1, optional(q.Place1))
	setOptional(patch, FieldPlace2, optional(q.Place2))
	if q.Days != nil && *q.Days > 0 {
		patch[FieldDays] = *q.Days
	}
	if q.Intent == IntentComparison && (optional(q.Place1) == "" || optional(q.Place2) == "") {
		if a, b, found := ExtractComparisonPlaces(question); found {
			patch[FieldPlace1], patch[FieldPlace2] = a, b
		}
	}

	span.SetAttributes(telemetry.IntentAttributes(q.IsTravelRelated, string(q.Intent), optional(q.Destination))...)
	n.logger.InfoContext(ctx, "travel.classified",
		slog.Bool("travel", q.IsTravelRelated),
		slog.String("intent", string(q.Intent)),
		slog.String("destination", optional(q.Destination)),
	)
	return patch, nil
}

// domainCheck is the fallback classifier: ALLOW means a travel query,
// anything else is treated as out of domain.
func (n *Nodes) domainCheck(ctx context.Context, question string) (Query, error) {
	reply, err := llm.Complete(ctx, n.llm, llm.User(fmt.Sprintf(domainGuardPrompt, question)))
	if err != nil {
		return Query{}, err
	}
	if strings.ToUpper(strings.TrimSpace(reply)) != "ALLOW" {
		return Query{IsTravelRelated: false, Intent: IntentNonTravel}, nil
	}
	q := Query{IsTravelRelated: true, Intent: IntentGeneral}
	if IsEmergencyQuery(question) {
		q.Intent = IntentEmergency
	}
	return q, nil
}

// Itinerary drafts a day-by-day plan. Its output feeds both budget and risk.
func (n *Nodes) Itinerary(ctx context.Context, s graph.State) (graph.Patch, error) {
	destination, _ := s.String(FieldDestination)
	text, err := n.complete(ctx, "travel.itinerary", s, itineraryPrompt(tripDays(s), destination))
	if err != nil {
		return nil, errors.Fatal("itinerary generation failed", err)
	}
	return graph.Patch{FieldItinerary: text}, nil
}

// Budget estimates trip costs from searched price information.
func (n *Nodes) Budget(ctx context.Context, s graph.State) (graph.Patch, error) {
	destination, _ := s.String(FieldDestination)
	budgetType, _ := s.String(FieldBudgetType)
	amount, _ := ExtractNumericBudget(lastUserText(s))

	info, sources := n.lookup(ctx, fmt.Sprintf("Average mid range travel cost per day in %s", destination))
	text, err := n.complete(ctx, "travel.budget", s, budgetPrompt(tripDays(s), destination, budgetType, amount, info))
	if err != nil {
		return nil, errors.Soft("budget estimate unavailable", err)
	}
	return graph.Patch{FieldBudget: text, FieldSources: sources}, nil
}

// Risk checks current travel advisories for the destination.
func (n *Nodes) Risk(ctx context.Context, s graph.State) (graph.Patch, error) {
	destination, _ := s.String(FieldDestination)
	info, sources := n.lookup(ctx, fmt.Sprintf("Current official travel advisory for %s", destination))

	ctx, span := n.startLLMSpan(ctx, "travel.risk", s.Len(FieldMessages)+1)
	defer span.End()
	msgs := append(s.Messages(FieldMessages), llm.System(riskPrompt(destination, info)))
	res, err := llm.Extract[RiskAssessment](ctx, n.llm, msgs, riskSchema)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Soft("risk check unavailable", err)
	}
	assessment, ok := res.Value()
	if !ok {
		return nil, errors.Soft("risk check returned an unusable reply", fmt.Errorf("%s", res.Reason()))
	}
	return graph.Patch{FieldRisk: assessment.Summary(), FieldSources: sources}, nil
}

// Combine assembles itinerary, budget and advisory into the final answer.
// It runs once, after both budget and risk have finished.
func (n *Nodes) Combine(_ context.Context, s graph.State) (graph.Patch, error) {
	itinerary, _ := s.String(FieldItinerary)
	budget, ok := s.String(FieldBudget)
	if !ok || budget == "" {
		budget = "Budget estimate unavailable right now."
	}
	risk, ok := s.String(FieldRisk)
	if !ok || risk == "" {
		risk = "Advisory information unavailable right now. Check your government's travel advice before leaving."
	}
	return graph.Patch{FieldMessages: llm.Assistant(combineAnswer(itinerary, budget, risk))}, nil
}

// Executor answers visa, hotel, comparison, attraction and general queries
// from search results.
func (n *Nodes) Executor(ctx context.Context, s graph.State) (graph.Patch, error) {
	question := lastUserText(s)
	intent, _ := s.String(FieldIntent)

	var prompt string
	var sources []string
	place1, ok1 := s.String(FieldPlace1)
	place2, ok2 := s.String(FieldPlace2)
	if Intent(intent) == IntentComparison && ok1 && ok2 {
		var info string
		info, sources = n.lookup(ctx, fmt.Sprintf("%s vs %s travel comparison", place1, place2))
		prompt = comparisonPrompt(place1, place2, info)
	} else {
		var info string
		info, sources = n.lookup(ctx, question)
		prompt = executorPrompt(question, info)
	}

	text, err := n.complete(ctx, "travel.executor", s, prompt)
	if err != nil {
		return nil, errors.Fatal("answer generation failed", err)
	}
	return graph.Patch{FieldMessages: llm.Assistant(text), FieldSources: sources}, nil
}

// Emergency records an incident and answers with urgent guidance. It always
// produces an answer, even when logging or the model fail.
func (n *Nodes) Emergency(ctx context.Context, s graph.State) (graph.Patch, error) {
	question := lastUserText(s)
	location, _ := s.String(FieldDestination)
	patch := graph.Patch{}

	if n.incidents != nil {
		userID, _ := s.String(FieldUserID)
		name, _ := s.String(FieldName)
		nationality, _ := s.String(FieldNationality)
		entry, err := n.incidents.Append(ctx, incident.Entry{
			UserID:           userID,
			Name:             name,
			Nationality:      nationality,
			IncidentLocation: location,
			OriginalMessage:  question,
		})
		if err != nil {
			n.logger.ErrorContext(ctx, "travel.incident.failed", slog.String("error", err.Error()))
		} else {
			patch[FieldIncidentID] = entry.ID
			n.logger.WarnContext(ctx, "travel.incident.logged",
				slog.String("incident_id", entry.ID),
				slog.String("location", location),
			)
		}
	}

	where := location
	if where == "" {
		where = "the traveller's location"
	}
	info, sources := n.lookup(ctx, fmt.Sprintf("emergency numbers police ambulance embassy %s", location))
	text, err := n.complete(ctx, "travel.emergency", s, emergencyPrompt(question, where, info))
	if err != nil {
		n.logger.ErrorContext(ctx, "travel.emergency.llm_failed", slog.String("error", err.Error()))
		text = emergencyFallback
	}
	patch[FieldMessages] = llm.Assistant(text)
	patch[FieldSources] = sources
	return patch, nil
}

// NonTravel declines queries outside the travel domain.
func (n *Nodes) NonTravel(context.Context, graph.State) (graph.Patch, error) {
	return graph.Patch{FieldMessages: llm.Assistant(NonTravelAnswer)}, nil
}

// complete sends the conversation plus a system instruction to the model.
func (n *Nodes) complete(ctx context.Context, span string, s graph.State, instruction string) (string, error) {
	msgs := append(s.Messages(FieldMessages), llm.System(instruction))
	ctx, sp := n.startLLMSpan(ctx, span, len(msgs))
	defer sp.End()
	text, err := llm.Complete(ctx, n.llm, msgs...)
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

// lookup searches for query and returns the joined text and source URLs.
func (n *Nodes) lookup(ctx context.Context, query string) (string, []string) {
	ctx, span := n.tracer.Start(ctx, "travel.search")
	defer span.End()
	snippets, _ := n.search.Query(ctx, query, n.maxResults)
	span.SetAttributes(telemetry.SearchAttributes(query, len(snippets))...)
	sources := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		if sn.URL != "" {
			sources = append(sources, sn.URL)
		}
	}
	return search.Join(snippets), sources
}

func (n *Nodes) startLLMSpan(ctx context.Context, name string, msgCount int) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, name, trace.WithAttributes(telemetry.LLMAttributes(n.model, n.provider, msgCount)...))
}

func setOptional(p graph.Patch, field, value string) {
	if value != "" {
		p[field] = value
	}
}
