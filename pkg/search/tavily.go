// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com"

// Tavily queries the Tavily web search API.
type Tavily struct {
	apiKey  string
	baseURL string
	depth   string
	client  *http.Client
}

// TavilyOption configures a Tavily client.
type TavilyOption func(*Tavily)

// WithTavilyURL overrides the API base URL.
func WithTavilyURL(url string) TavilyOption {
	return func(t *Tavily) {
		if url != "" {
			t.baseURL = url
		}
	}
}

// WithSearchDepth sets "basic" or "advanced" search depth.
func WithSearchDepth(depth string) TavilyOption {
	return func(t *Tavily) {
		t.depth = depth
	}
}

// WithTavilyHTTPClient replaces the HTTP client.
func WithTavilyHTTPClient(client *http.Client) TavilyOption {
	return func(t *Tavily) {
		if client != nil {
			t.client = client
		}
	}
}

// NewTavily creates a Tavily client using advanced search depth.
func NewTavily(apiKey string, opts ...TavilyOption) *Tavily {
	t := &Tavily{
		apiKey:  apiKey,
		baseURL: DefaultTavilyURL,
		depth:   "advanced",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Query implements Searcher.
func (t *Tavily) Query(ctx context.Context, text string, maxResults int) ([]Snippet, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       text,
		SearchDepth: t.depth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeSearchError, "tavily search failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.New(errors.CodeSearchError, fmt.Sprintf("tavily returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)), nil).
			WithRecoverable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errors.New(errors.CodeSearchError, "failed to decode tavily response", err)
	}
	out := make([]Snippet, 0, len(tr.Results))
	for _, r := range tr.Results {
		out = append(out, Snippet{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return out, nil
}

var _ Searcher = (*Tavily)(nil)
