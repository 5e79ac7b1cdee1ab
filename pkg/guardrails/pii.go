// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// PIIFilterMode decides what replaces a match.
type PIIFilterMode int

const (
	// PIIFilterMask replaces matches with a placeholder such as [PASSPORT].
	PIIFilterMask PIIFilterMode = iota
	// PIIFilterRedact removes matches.
	PIIFilterRedact
	// PIIFilterHash replaces matches with a short stable hash so repeated
	// values can still be correlated.
	PIIFilterHash
)

// PIIType names a kind of identifier.
type PIIType string

const (
	PIITypeCreditCard PIIType = "credit_card"
	PIITypePassport   PIIType = "passport"
	PIITypeEmail      PIIType = "email"
	PIITypePhone      PIIType = "phone"
)

type piiPattern struct {
	piiType PIIType
	pattern *regexp.Regexp
	mask    string
}

// Card numbers come first so the phone pattern never sees their digits.
var defaultPIIPatterns = []piiPattern{
	{PIITypeCreditCard, regexp.MustCompile(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`), "[CREDIT_CARD]"},
	{PIITypePassport, regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{6,9}\b`), "[PASSPORT]"},
	{PIITypeEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{PIITypePhone, regexp.MustCompile(`\+[0-9]{1,3}[-.\s]?[0-9][0-9\-.\s]{5,14}[0-9]`), "[PHONE]"},
}

// PIIFilter masks identifiers in answers.
type PIIFilter struct {
	mode    PIIFilterMode
	enabled map[PIIType]bool
}

// PIIFilterOption configures a PIIFilter.
type PIIFilterOption func(*PIIFilter)

// NewPIIFilter enables every known type unless WithPIITypes narrows it.
func NewPIIFilter(mode PIIFilterMode, opts ...PIIFilterOption) *PIIFilter {
	f := &PIIFilter{mode: mode, enabled: make(map[PIIType]bool)}
	for _, p := range defaultPIIPatterns {
		f.enabled[p.piiType] = true
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithPIITypes enables only the given types.
func WithPIITypes(types ...PIIType) PIIFilterOption {
	return func(f *PIIFilter) {
		clear(f.enabled)
		for _, t := range types {
			f.enabled[t] = true
		}
	}
}

// ID implements OutputFilter.
func (f *PIIFilter) ID() string { return "pii-filter" }

// FilterOutput implements OutputFilter.
func (f *PIIFilter) FilterOutput(ctx context.Context, output string) FilterResult {
	result := FilterResult{Content: output}
	for _, p := range defaultPIIPatterns {
		if !f.enabled[p.piiType] || ctx.Err() != nil {
			continue
		}
		matches := p.pattern.FindAllStringIndex(result.Content, -1)
		// Replace back to front so earlier offsets stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			start, end := matches[i][0], matches[i][1]
			replacement := f.replacement(p, result.Content[start:end])
			result.Redactions = append(result.Redactions, Redaction{
				Type:        string(p.piiType),
				Replacement: replacement,
				Position:    start,
			})
			result.Content = result.Content[:start] + replacement + result.Content[end:]
			result.Modified = true
		}
	}
	return result
}

func (f *PIIFilter) replacement(p piiPattern, original string) string {
	switch f.mode {
	case PIIFilterRedact:
		return ""
	case PIIFilterHash:
		h := fnv.New64a()
		_, _ = h.Write([]byte(original))
		return fmt.Sprintf("%s_%08X]", strings.TrimSuffix(p.mask, "]"), uint32(h.Sum64()))
	default:
		return p.mask
	}
}

// WithPIIFilter adds a PIIFilter as an output filter.
func WithPIIFilter(mode PIIFilterMode, opts ...PIIFilterOption) Option {
	return WithOutputFilter(NewPIIFilter(mode, opts...))
}
