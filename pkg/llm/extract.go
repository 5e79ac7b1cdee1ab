// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// Validator is implemented by extraction targets that check their own
// invariants after decoding.
type Validator interface {
	Validate() error
}

// Extraction is the result of a structured extraction: either a decoded value
// or the reason the model reply did not satisfy the requested shape.
type Extraction[T any] struct {
	value  T
	ok     bool
	reason string
	// Raw is the model reply the result was derived from.
	Raw string
}

// Ok wraps a valid value.
func Ok[T any](value T) Extraction[T] {
	return Extraction[T]{value: value, ok: true}
}

// ValidationError reports a reply that could not be turned into a T.
func ValidationError[T any](reason, raw string) Extraction[T] {
	return Extraction[T]{reason: reason, Raw: raw}
}

// OK reports whether the extraction produced a value.
func (e Extraction[T]) OK() bool { return e.ok }

// Value returns the decoded value and whether it is valid.
func (e Extraction[T]) Value() (T, bool) { return e.value, e.ok }

// ValueOr returns the decoded value, or fallback on a validation error.
func (e Extraction[T]) ValueOr(fallback T) T {
	if !e.ok {
		return fallback
	}
	return e.value
}

// Reason explains a validation error; empty for valid results.
func (e Extraction[T]) Reason() string { return e.reason }

// Extract asks p for a JSON object shaped as described by schemaHint and
// decodes it into T. A reply that is not valid JSON for T, or that fails
// Validate, yields a ValidationError result; err is reserved for transport
// failures.
func Extract[T any](ctx context.Context, p Provider, msgs []Message, schemaHint string) (Extraction[T], error) {
	prompt := make([]Message, 0, len(msgs)+1)
	prompt = append(prompt, System(extractionInstruction(schemaHint)))
	prompt = append(prompt, msgs...)

	resp, err := p.Chat(ctx, ChatRequest{Messages: prompt, JSON: true})
	if err != nil {
		if errors.IsCode(err, errors.CodeLLMError) || errors.IsCode(err, errors.CodeTimeout) {
			return Extraction[T]{}, err
		}
		return Extraction[T]{}, errors.New(errors.CodeLLMError, "structured extraction failed", err)
	}
	return decodeExtraction[T](resp.Content), nil
}

func extractionInstruction(schemaHint string) string {
	var b strings.Builder
	b.WriteString("Reply with a single JSON object and nothing else.")
	if hint := strings.TrimSpace(schemaHint); hint != "" {
		b.WriteString(" The object must have this shape: ")
		b.WriteString(hint)
	}
	return b.String()
}

func decodeExtraction[T any](raw string) Extraction[T] {
	body, ok := jsonObject(raw)
	if !ok {
		return ValidationError[T]("reply does not contain a JSON object", raw)
	}
	var value T
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		return ValidationError[T](fmt.Sprintf("decode reply: %v", err), raw)
	}
	if v, ok := any(&value).(Validator); ok {
		if err := v.Validate(); err != nil {
			return ValidationError[T](err.Error(), raw)
		}
	} else if v, ok := any(value).(Validator); ok {
		if err := v.Validate(); err != nil {
			return ValidationError[T](err.Error(), raw)
		}
	}
	out := Ok(value)
	out.Raw = raw
	return out
}

// jsonObject returns the outermost {...} span of s, tolerating code fences
// and prose around it.
func jsonObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
