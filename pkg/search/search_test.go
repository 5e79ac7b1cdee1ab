// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/memory"
	"github.com/jllopis/tripgraph/pkg/resilience"
)

func TestJoinCapsLength(t *testing.T) {
	long := strings.Repeat("x", 3000)
	got := Join([]Snippet{{Content: long}, {Content: long}})
	assert.Len(t, got, MaxJoinedChars)
	assert.Equal(t, "a\nb", Join([]Snippet{{Content: "a"}, {Content: "b"}}))
	assert.Equal(t, "", Join(nil))
}

func TestTavilyQuery(t *testing.T) {
	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = fmt.Fprint(w, `{"results":[{"title":"Goa","url":"https://example.com/goa","content":"Beaches and forts","score":0.9}]}`)
	}))
	defer srv.Close()

	tv := NewTavily("key", WithTavilyURL(srv.URL))
	snippets, err := tv.Query(context.Background(), "Goa cost per day", 5)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "Beaches and forts", snippets[0].Content)
	assert.Equal(t, "advanced", got.SearchDepth)
	assert.Equal(t, 5, got.MaxResults)
	assert.Equal(t, "Goa cost per day", got.Query)
}

func TestTavilyStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewTavily("key", WithTavilyURL(srv.URL)).Query(context.Background(), "q", 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSearchError))
	assert.Contains(t, err.Error(), "429")
}

func TestFailSoftSwallowsErrors(t *testing.T) {
	failing := SearcherFunc(func(context.Context, string, int) ([]Snippet, error) {
		return nil, fmt.Errorf("network down")
	})
	snippets, err := FailSoft(failing, resilience.Policy{}, nil).Query(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.NotNil(t, snippets)
	assert.Empty(t, snippets)
}

func TestFailSoftTimeout(t *testing.T) {
	slow := SearcherFunc(func(ctx context.Context, _ string, _ int) ([]Snippet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	start := time.Now()
	snippets, err := FailSoft(slow, resilience.Policy{Timeout: 20 * time.Millisecond}, nil).
		Query(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Empty(t, snippets)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTextJoinsResults(t *testing.T) {
	s := SearcherFunc(func(context.Context, string, int) ([]Snippet, error) {
		return []Snippet{{Content: "one"}, {Content: "two"}}, nil
	})
	assert.Equal(t, "one\ntwo", Text(context.Background(), s, "q", 2))
	assert.Equal(t, "", Text(context.Background(), None, "q", 2))
}

type wordEmbedder struct{ vocab []string }

func (w wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	vec := make([]float32, len(w.vocab))
	for i, v := range w.vocab {
		vec[i] = float32(strings.Count(text, v))
	}
	return vec, nil
}

func TestRetrieverQuery(t *testing.T) {
	ctx := context.Background()
	ix := memory.NewIndex(memory.NewInMemory(), wordEmbedder{vocab: []string{"visa", "beach", "sample"}}, "kb")
	require.NoError(t, ix.Initialize(ctx))
	_, err := ix.AddDocument(ctx, "visa.txt", "A visa on arrival is available for many travellers.")
	require.NoError(t, err)
	_, err = ix.AddDocument(ctx, "beach.txt", "The best beach months are November to February.")
	require.NoError(t, err)

	snippets, err := NewRetriever(ix, 0.1).Query(ctx, "visa rules", 1)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "visa.txt", snippets[0].Title)
	assert.Contains(t, snippets[0].Content, "visa on arrival")
	assert.True(t, strings.HasPrefix(snippets[0].URL, "kb://visa.txt#"))
}
