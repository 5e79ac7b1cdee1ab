// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides the vector store and embedding backends behind the
// knowledge-base retriever.
package memory

import "context"

// Payload keys written by Index for every chunk.
const (
	PayloadText   = "text"
	PayloadSource = "source"
)

// VectorStore is the storage side of the knowledge base.
type VectorStore interface {
	// CreateCollection creates a collection if it doesn't exist.
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	// Upsert adds or replaces points by id.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit points scoring at least scoreThreshold
	// against vector, best first.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
}

// Point is one stored chunk.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Text returns the chunk text stored in the payload.
func (p Point) Text() string {
	s, _ := p.Payload[PayloadText].(string)
	return s
}

// Source returns the document the chunk came from.
func (p Point) Source() string {
	s, _ := p.Payload[PayloadSource].(string)
	return s
}

// SearchResult is a scored hit.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// Embedder converts text to vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by embedders that can embed several texts in
// one call. Index uses it when available.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
