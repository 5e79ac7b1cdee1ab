// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/guardrails"
	"github.com/jllopis/tripgraph/pkg/llm"
	"github.com/jllopis/tripgraph/pkg/run"
)

// Request is one user turn.
type Request struct {
	// RunID continues a stored conversation. Empty starts a new one.
	RunID       string
	UserID      string
	Name        string
	Nationality string
	Message     string
}

// Answer is the assistant's reply to one turn.
type Answer struct {
	RunID       string
	Text        string
	Intent      Intent
	Destination string
	IncidentID  string
	// Sources lists the URLs consulted during this turn.
	Sources []string
	State   graph.State
}

// Assistant answers travel questions by running the assistant graph.
type Assistant struct {
	ctrl   *run.Controller
	logger *slog.Logger
	guard  *guardrails.Guardrails
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithGuardrails screens every message before the graph runs and filters
// every answer before it is returned.
func WithGuardrails(g *guardrails.Guardrails) AssistantOption {
	return func(a *Assistant) {
		a.guard = g
	}
}

// NewAssistant wraps a controller built over NewGraph or CompileDefinition.
func NewAssistant(ctrl *run.Controller, logger *slog.Logger, opts ...AssistantOption) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assistant{ctrl: ctrl, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Controller returns the underlying run controller.
func (a *Assistant) Controller() *run.Controller {
	return a.ctrl
}

// Ask runs one turn. When req.RunID names a stored run the message is
// appended to that conversation and the per-turn fields are cleared first;
// otherwise a new run starts under req.RunID, or a fresh id if empty.
func (a *Assistant) Ask(ctx context.Context, req Request) (*Answer, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, errors.New(errors.CodeInvalidInput, "message is empty", nil)
	}
	if res := a.guard.CheckInput(ctx, text); res.Blocked {
		a.logger.WarnContext(ctx, "travel.input.blocked",
			slog.String("run_id", req.RunID),
			slog.String("guardrail", res.GuardrailID),
			slog.String("reason", res.Reason))
		return nil, res.Err()
	}

	patch := graph.Patch{FieldMessages: llm.User(text)}
	setOptional(patch, FieldUserID, req.UserID)
	setOptional(patch, FieldName, req.Name)
	setOptional(patch, FieldNationality, req.Nationality)

	var seen int
	res, err := a.ctrl.Turn(ctx, req.RunID, func(prev *graph.State) (graph.State, error) {
		schema := a.ctrl.Graph().Schema()
		if prev == nil {
			return schema.NewState(patch)
		}
		seen = prev.Len(FieldSources)
		for _, f := range turnFields {
			patch[f] = nil
		}
		a.logger.DebugContext(ctx, "travel.turn.resume", slog.String("run_id", req.RunID))
		return schema.Apply(*prev, patch)
	}, run.WithFinish(a.filterAnswer))
	if err != nil {
		return nil, err
	}
	return newAnswer(res.RunID, res.State, seen), nil
}

// filterAnswer masks the assistant's last message in place, so the returned
// state and the stored snapshot never hold what the output filters removed.
func (a *Assistant) filterAnswer(ctx context.Context, s graph.State) (graph.State, error) {
	msgs := s.Messages(FieldMessages)
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != llm.RoleAssistant {
		return s, nil
	}
	fr := a.guard.FilterOutput(ctx, msgs[len(msgs)-1].Content)
	if !fr.Modified {
		return s, nil
	}
	a.logger.InfoContext(ctx, "travel.output.filtered", slog.Int("redactions", len(fr.Redactions)))
	msgs[len(msgs)-1].Content = fr.Content
	values := s.Values()
	values[FieldMessages] = msgs
	return s.Schema().NewState(values)
}

func newAnswer(runID string, s graph.State, seenSources int) *Answer {
	ans := &Answer{RunID: runID, State: s}
	if last, ok := s.LastMessage(FieldMessages); ok && last.Role == llm.RoleAssistant {
		ans.Text = last.Content
	}
	intent, _ := s.String(FieldIntent)
	ans.Intent = Intent(intent)
	ans.Destination, _ = s.String(FieldDestination)
	ans.IncidentID, _ = s.String(FieldIncidentID)
	if sources := s.Strings(FieldSources); len(sources) > seenSources {
		ans.Sources = sources[seenSources:]
	}
	return ans
}
