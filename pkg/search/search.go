// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package search provides the web and knowledge-base lookups that nodes use
// to ground answers.
package search

import (
	"context"
	"strings"
)

// MaxJoinedChars caps the text returned by Join.
const MaxJoinedChars = 4000

// Snippet is one search hit.
type Snippet struct {
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher answers free-text queries with ranked snippets.
type Searcher interface {
	Query(ctx context.Context, text string, maxResults int) ([]Snippet, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, text string, maxResults int) ([]Snippet, error)

// Query implements Searcher.
func (f SearcherFunc) Query(ctx context.Context, text string, maxResults int) ([]Snippet, error) {
	return f(ctx, text, maxResults)
}

// Join concatenates snippet contents one per line, truncated to
// MaxJoinedChars runes.
func Join(snippets []Snippet) string {
	parts := make([]string, len(snippets))
	for i, s := range snippets {
		parts[i] = s.Content
	}
	joined := []rune(strings.Join(parts, "\n"))
	if len(joined) > MaxJoinedChars {
		joined = joined[:MaxJoinedChars]
	}
	return string(joined)
}

// None is a Searcher that never finds anything.
var None Searcher = SearcherFunc(func(context.Context, string, int) ([]Snippet, error) {
	return nil, nil
})
