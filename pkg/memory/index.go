// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Chunking defaults for knowledge-base documents.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// Index stores text chunks in a vector store and retrieves them by meaning.
type Index struct {
	store      VectorStore
	embedder   Embedder
	collection string
	chunkSize  int
	overlap    int
}

// NewIndex creates an index over collection.
func NewIndex(store VectorStore, embedder Embedder, collection string) *Index {
	return &Index{
		store:      store,
		embedder:   embedder,
		collection: collection,
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
	}
}

// Initialize creates the collection with the embedder's dimension.
func (ix *Index) Initialize(ctx context.Context) error {
	vec, err := ix.embedder.Embed(ctx, "dimension sample")
	if err != nil {
		return fmt.Errorf("failed to get embedding dimension: %w", err)
	}
	if err := ix.store.CreateCollection(ctx, ix.collection, uint64(len(vec))); err != nil {
		// The collection may already exist; a search confirms it is usable.
		if _, searchErr := ix.store.Search(ctx, ix.collection, vec, 1, 0); searchErr == nil {
			return nil
		}
		return err
	}
	return nil
}

// AddDocument splits text into overlapping chunks and stores each one with
// its source. It returns the number of chunks stored.
func (ix *Index) AddDocument(ctx context.Context, source, text string) (int, error) {
	chunks := Chunk(text, ix.chunkSize, ix.overlap)
	if len(chunks) == 0 {
		return 0, nil
	}
	vectors, err := ix.embedAll(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks of %s: %w", source, err)
	}
	points := make([]Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = Point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				PayloadText:   chunk,
				PayloadSource: source,
			},
		}
	}
	if err := ix.store.Upsert(ctx, ix.collection, points); err != nil {
		return 0, fmt.Errorf("failed to store chunks of %s: %w", source, err)
	}
	return len(points), nil
}

func (ix *Index) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if be, ok := ix.embedder.(BatchEmbedder); ok {
		vectors, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		return vectors, nil
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Search returns the stored chunks closest to query.
func (ix *Index) Search(ctx context.Context, query string, limit int, threshold float32) ([]SearchResult, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return ix.store.Search(ctx, ix.collection, vec, limit, threshold)
}

// Chunk splits text into pieces of at most size runes, overlapping by
// overlap runes. Chunks break on whitespace when possible.
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		// Prefer to cut at the last space in the second half of the window.
		for cut := end; cut > start+size/2; cut-- {
			if runes[cut] == ' ' || runes[cut] == '\n' {
				end = cut
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[start:end])))
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
