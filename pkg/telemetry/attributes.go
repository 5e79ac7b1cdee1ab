// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics setup for the graph
// engine and the assistant built on it.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans, metrics and log records.
const (
	// Graph attributes
	AttrGraphID    = "graph.id"
	AttrRunID      = "run.id"
	AttrSuperstep  = "graph.superstep"
	AttrSupersteps = "graph.supersteps"
	AttrNodeID     = "node.id"
	AttrNodeStatus = "node.status"
	AttrField      = "state.field"
	AttrErrorCode  = "error.code"

	// Assistant attributes
	AttrIntent      = "travel.intent"
	AttrDestination = "travel.destination"
	AttrTravel      = "travel.related"

	// LLM attributes (standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"

	// Search attributes
	AttrSearchQuery   = "search.query"
	AttrSearchResults = "search.results"
)

// RunAttributes returns attributes identifying a run.
func RunAttributes(graphID, runID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrGraphID, graphID)}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	return attrs
}

// NodeAttributes returns attributes for one node execution.
func NodeAttributes(graphID, nodeID, status string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrGraphID, graphID),
		attribute.String(AttrNodeID, nodeID),
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrNodeStatus, status))
	}
	return attrs
}

// IntentAttributes returns attributes for a classified query.
func IntentAttributes(travel bool, intent, destination string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(AttrTravel, travel)}
	if intent != "" {
		attrs = append(attrs, attribute.String(AttrIntent, intent))
	}
	if destination != "" {
		attrs = append(attrs, attribute.String(AttrDestination, destination))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, provider string, msgCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	return attrs
}

// SearchAttributes returns attributes for a search call. Long queries are
// truncated.
func SearchAttributes(query string, results int) []attribute.KeyValue {
	if len(query) > 200 {
		query = query[:200] + "..."
	}
	return []attribute.KeyValue{
		attribute.String(AttrSearchQuery, query),
		attribute.Int(AttrSearchResults, results),
	}
}
