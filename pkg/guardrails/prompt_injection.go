// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
)

// PromptInjectionDetector flags messages that try to override the
// assistant's instructions instead of asking a travel question.
type PromptInjectionDetector struct {
	patterns  []*regexp.Regexp
	threshold float64
}

// PromptInjectionOption configures the detector.
type PromptInjectionOption func(*PromptInjectionDetector)

var defaultInjectionPatterns = []string{
	`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?)`,
	`(?i)you\s+are\s+now\s+(a|an)\s+`,
	`(?i)pretend\s+(you\s+are|to\s+be)\s+`,
	`(?i)(what|show|reveal|print|repeat)\s+(is|are|me)?\s*your\s+(system\s+)?(prompt|instructions?)`,
	`(?i)\b(jailbreak|do\s+anything\s+now|dan\s+mode)\b`,
	`(?i)(developer|debug|sudo|admin)\s+mode`,
	`(?i)bypass\s+(the\s+)?(safety|content|filter|classifier)`,
	`(?i)(<\|[^|]*\|>|\[/?INST\]|<</?SYS>>|\]\]\s*system\s*:)`,
}

// NewPromptInjectionDetector compiles the default patterns plus any added
// with WithInjectionPatterns.
func NewPromptInjectionDetector(opts ...PromptInjectionOption) *PromptInjectionDetector {
	d := &PromptInjectionDetector{}
	for _, p := range defaultInjectionPatterns {
		d.patterns = append(d.patterns, regexp.MustCompile(p))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithInjectionPatterns adds patterns. Invalid expressions are skipped.
func WithInjectionPatterns(patterns ...string) PromptInjectionOption {
	return func(d *PromptInjectionDetector) {
		for _, p := range patterns {
			if re, err := regexp.Compile(p); err == nil {
				d.patterns = append(d.patterns, re)
			}
		}
	}
}

// WithInjectionThreshold sets the confidence needed to block. One match
// scores 0.7 and each further match adds 0.1.
func WithInjectionThreshold(threshold float64) PromptInjectionOption {
	return func(d *PromptInjectionDetector) {
		if threshold >= 0 && threshold <= 1 {
			d.threshold = threshold
		}
	}
}

// ID implements InputChecker.
func (d *PromptInjectionDetector) ID() string { return "prompt-injection" }

// CheckInput implements InputChecker.
func (d *PromptInjectionDetector) CheckInput(ctx context.Context, input string) CheckResult {
	var matched []string
	for _, re := range d.patterns {
		if ctx.Err() != nil {
			break
		}
		if re.MatchString(input) {
			matched = append(matched, re.String())
		}
	}
	if len(matched) == 0 {
		return CheckResult{}
	}
	confidence := min(0.7+float64(len(matched)-1)*0.1, 1.0)
	if confidence < d.threshold {
		return CheckResult{Confidence: confidence}
	}
	return CheckResult{
		Blocked:    true,
		Reason:     "potential prompt injection detected",
		Confidence: confidence,
		Metadata:   map[string]any{"matched_patterns": matched},
	}
}

// WithPromptInjectionDetector adds a detector as an input checker.
func WithPromptInjectionDetector(opts ...PromptInjectionOption) Option {
	return WithInputChecker(NewPromptInjectionDetector(opts...))
}
