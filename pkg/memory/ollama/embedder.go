// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package ollama implements memory.Embedder with the Ollama embed API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/memory"
)

// Defaults used when NewEmbedder gets empty values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
)

// Embedder calls POST /api/embed. It embeds every chunk of a document in a
// single request.
type Embedder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewEmbedder creates an Embedder for model served at baseURL.
func NewEmbedder(baseURL, model string) *Embedder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed implements memory.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements memory.BatchEmbedder.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeSearchError, "ollama embed call failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	var out embedResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("ollama embed returned status %d", resp.StatusCode)
		if out.Error != "" {
			msg += ": " + out.Error
		}
		return nil, errors.New(errors.CodeSearchError, msg, nil).
			WithContext("model", e.model).
			WithRecoverable(resp.StatusCode >= 500)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode embed response: %w", decodeErr)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, errors.New(errors.CodeSearchError,
			fmt.Sprintf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(texts)), nil).
			WithContext("model", e.model)
	}
	for i, v := range out.Embeddings {
		if len(v) == 0 {
			return nil, errors.New(errors.CodeSearchError, fmt.Sprintf("ollama returned an empty embedding for input %d", i), nil).
				WithContext("model", e.model)
		}
	}
	return out.Embeddings, nil
}

var _ memory.BatchEmbedder = (*Embedder)(nil)
