// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/memory"
)

// Retriever answers queries from a vector knowledge base.
type Retriever struct {
	index     *memory.Index
	threshold float32
}

// NewRetriever creates a Retriever over index. Hits scoring below threshold
// are dropped.
func NewRetriever(index *memory.Index, threshold float32) *Retriever {
	return &Retriever{index: index, threshold: threshold}
}

// Query implements Searcher.
func (r *Retriever) Query(ctx context.Context, text string, maxResults int) ([]Snippet, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	hits, err := r.index.Search(ctx, text, maxResults, r.threshold)
	if err != nil {
		return nil, errors.New(errors.CodeSearchError, "vector search failed", err)
	}
	out := make([]Snippet, 0, len(hits))
	for _, h := range hits {
		out = append(out, Snippet{
			Title:   h.Point.Source(),
			URL:     fmt.Sprintf("kb://%s#%s", h.Point.Source(), h.ID),
			Content: h.Point.Text(),
			Score:   float64(h.Score),
		})
	}
	return out, nil
}

var _ Searcher = (*Retriever)(nil)
