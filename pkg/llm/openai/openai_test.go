// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/llm"
)

func TestNewProvider(t *testing.T) {
	p := New()
	if p.Model() != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %s", p.Model())
	}
	if g := NewGroq("key"); g.Model() != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected groq model %s", g.Model())
	}
	if g := NewGroq("key", WithModel("mixtral")); g.Model() != "mixtral" {
		t.Errorf("model option should override the groq default, got %s", g.Model())
	}
}

func TestChatAgainstCompatibleServer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Kyoto in spring"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9}
		}`))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL), WithAPIKey("test-key"), WithModel("llama"))
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{llm.System("You are a travel planner"), llm.User("Where to go?")},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "Kyoto in spring" || resp.Usage.TotalTokens != 9 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if body["model"] != "llama" {
		t.Fatalf("unexpected model in request: %v", body["model"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestChatErrorIsCoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL), WithAPIKey("nope"), WithRequestOptions())
	_, err := p.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{llm.User("hi")}})
	if !errors.IsCode(err, errors.CodeLLMError) {
		t.Fatalf("expected LLM_ERROR, got %v", err)
	}
}
