// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails screens traveller messages before they reach the
// assistant graph and masks sensitive identifiers in its answers.
//
//	guard := guardrails.New(
//	    guardrails.WithPromptInjectionDetector(),
//	    guardrails.WithPIIFilter(guardrails.PIIFilterMask, guardrails.WithPIITypes(guardrails.PIITypePassport)),
//	)
//	if res := guard.CheckInput(ctx, message); res.Blocked {
//	    return res.Err()
//	}
//	text := guard.FilterOutput(ctx, answer).Content
package guardrails

import (
	"context"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// CheckResult is the outcome of an input check.
type CheckResult struct {
	Blocked     bool
	Reason      string
	GuardrailID string
	// Confidence is in [0, 1]; pattern detectors report 1 for a hard match.
	Confidence float64
	Metadata   map[string]any
}

// Err converts a blocking result into an INVALID_INPUT error. It returns nil
// when the input may proceed.
func (r CheckResult) Err() error {
	if !r.Blocked {
		return nil
	}
	return errors.New(errors.CodeInvalidInput, "message rejected: "+r.Reason, nil).
		WithContext("guardrail", r.GuardrailID)
}

// FilterResult is the outcome of output filtering.
type FilterResult struct {
	Content    string
	Modified   bool
	Redactions []Redaction
}

// Redaction describes one masked span. The original text is never kept.
type Redaction struct {
	Type        string
	Replacement string
	Position    int
}

// InputChecker inspects a message before the graph runs.
type InputChecker interface {
	CheckInput(ctx context.Context, input string) CheckResult
	ID() string
}

// OutputFilter rewrites an answer before it is returned.
type OutputFilter interface {
	FilterOutput(ctx context.Context, output string) FilterResult
	ID() string
}

// Guardrails runs input checkers and output filters in registration order.
type Guardrails struct {
	inputCheckers []InputChecker
	outputFilters []OutputFilter
	failOpen      bool
}

// Option configures Guardrails.
type Option func(*Guardrails)

// New creates a Guardrails instance. It fails closed unless WithFailOpen is
// given.
func New(opts ...Option) *Guardrails {
	g := &Guardrails{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithInputChecker adds an input checker.
func WithInputChecker(checker InputChecker) Option {
	return func(g *Guardrails) {
		g.inputCheckers = append(g.inputCheckers, checker)
	}
}

// WithOutputFilter adds an output filter.
func WithOutputFilter(filter OutputFilter) Option {
	return func(g *Guardrails) {
		g.outputFilters = append(g.outputFilters, filter)
	}
}

// WithFailOpen lets input through when the context is cancelled mid-check.
func WithFailOpen(failOpen bool) Option {
	return func(g *Guardrails) {
		g.failOpen = failOpen
	}
}

// CheckInput returns the first blocking result, or a zero result.
func (g *Guardrails) CheckInput(ctx context.Context, input string) CheckResult {
	if g == nil {
		return CheckResult{}
	}
	for _, checker := range g.inputCheckers {
		if ctx.Err() != nil {
			if g.failOpen {
				return CheckResult{}
			}
			return CheckResult{Blocked: true, Reason: "guardrail check cancelled", GuardrailID: "system"}
		}
		if res := checker.CheckInput(ctx, input); res.Blocked {
			res.GuardrailID = checker.ID()
			return res
		}
	}
	return CheckResult{}
}

// FilterOutput chains the output filters, each one seeing the previous
// result.
func (g *Guardrails) FilterOutput(ctx context.Context, output string) FilterResult {
	result := FilterResult{Content: output}
	if g == nil {
		return result
	}
	for _, filter := range g.outputFilters {
		if ctx.Err() != nil {
			return result
		}
		fr := filter.FilterOutput(ctx, result.Content)
		if fr.Modified {
			result.Content = fr.Content
			result.Modified = true
			result.Redactions = append(result.Redactions, fr.Redactions...)
		}
	}
	return result
}
