// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/tripgraph/pkg/graph"
)

func TestLoggerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "graph.run.start")
	span.End()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("missing trace_id: %v", record)
	}
	if record["span_id"] == nil {
		t.Fatalf("missing span_id: %v", record)
	}
}

func TestRunLogger(t *testing.T) {
	var buf bytes.Buffer
	RunLogger(NewLogger(&buf, "info", "json"), "travel", "run-9").Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record[AttrGraphID] != "travel" || record[AttrRunID] != "run-9" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestLoggerAddsNodeScope(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json")
	ctx := graph.ContextWithScope(context.Background(), graph.Scope{
		GraphID: "travel", RunID: "run-3", NodeID: "budget", Superstep: 2,
	})

	logger.InfoContext(ctx, "travel.budget.done")
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record[AttrGraphID] != "travel" || record[AttrRunID] != "run-3" || record[AttrNodeID] != "budget" {
		t.Fatalf("missing scope ids: %v", record)
	}

	buf.Reset()
	RunLogger(logger, "travel", "run-3").InfoContext(ctx, "again")
	if n := bytes.Count(buf.Bytes(), []byte(`"run.id"`)); n != 1 {
		t.Fatalf("run.id written %d times: %s", n, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
