// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/tripgraph/pkg/graph"
)

// ConfigureSlog sets the global slog logger. Records logged with a context
// carry its trace and span ids and, inside a node, the graph, run and node
// ids set by the scheduler.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(output, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds a scope-aware logger without touching the global one.
// Format is "json" or "text".
func NewLogger(output io.Writer, level, format string) *slog.Logger {
	return slog.New(newSlogHandler(output, level, format))
}

// RunLogger returns logger annotated with the graph and run ids.
func RunLogger(logger *slog.Logger, graphID, runID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String(AttrGraphID, graphID), slog.String(AttrRunID, runID))
}

func newSlogHandler(output io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base = slog.NewJSONHandler(output, opts)
	default:
		base = slog.NewTextHandler(output, opts)
	}
	return &scopeHandler{next: base}
}

// scopeHandler adds context-derived ids to records. Keys already bound with
// With are not repeated.
type scopeHandler struct {
	next  slog.Handler
	bound map[string]bool
}

func (h *scopeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *scopeHandler) Handle(ctx context.Context, record slog.Record) error {
	add := func(key, value string) {
		if value != "" && !h.bound[key] && !recordHasAttr(record, key) {
			record.AddAttrs(slog.String(key, value))
		}
	}
	traceID, spanID := spanIDsFromContext(ctx)
	add("trace_id", traceID)
	add("span_id", spanID)
	if sc, ok := graph.ScopeFromContext(ctx); ok {
		add(AttrGraphID, sc.GraphID)
		add(AttrRunID, sc.RunID)
		add(AttrNodeID, sc.NodeID)
	}
	return h.next.Handle(ctx, record)
}

func (h *scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = true
	}
	for _, a := range attrs {
		bound[a.Key] = true
	}
	return &scopeHandler{next: h.next.WithAttrs(attrs), bound: bound}
}

// WithGroup nests later attributes, so bound keys no longer collide with the
// top-level ids.
func (h *scopeHandler) WithGroup(name string) slog.Handler {
	return &scopeHandler{next: h.next.WithGroup(name)}
}

// ParseLevel maps a level name to slog.Level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func spanIDsFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return "", ""
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

func recordHasAttr(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}
