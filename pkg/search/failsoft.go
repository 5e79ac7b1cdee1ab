// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"log/slog"

	"github.com/jllopis/tripgraph/pkg/resilience"
)

// SoftSearcher wraps a Searcher so failures yield no results instead of an
// error.
type SoftSearcher struct {
	inner  Searcher
	policy resilience.Policy
	logger *slog.Logger
}

// FailSoft wraps s. Each query runs under policy; any failure, timeout
// included, is logged and answered with an empty result.
func FailSoft(s Searcher, policy resilience.Policy, logger *slog.Logger) *SoftSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SoftSearcher{inner: s, policy: policy, logger: logger}
}

// Query implements Searcher. The returned error is always nil.
func (s *SoftSearcher) Query(ctx context.Context, text string, maxResults int) ([]Snippet, error) {
	return resilience.Fallback(ctx,
		func(ctx context.Context) ([]Snippet, error) {
			return resilience.Call(ctx, s.policy, func(ctx context.Context) ([]Snippet, error) {
				return s.inner.Query(ctx, text, maxResults)
			})
		},
		func(ctx context.Context, err error) ([]Snippet, error) {
			s.logger.WarnContext(ctx, "search.failed",
				slog.String("query", text),
				slog.String("error", err.Error()),
			)
			return []Snippet{}, nil
		},
	)
}

// Text queries s and returns the joined snippet text, or "" when nothing
// was found.
func Text(ctx context.Context, s Searcher, query string, maxResults int) string {
	snippets, err := s.Query(ctx, query, maxResults)
	if err != nil {
		return ""
	}
	return Join(snippets)
}

var _ Searcher = (*SoftSearcher)(nil)
