// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/tripgraph/pkg/llm"
)

func TestWithModel(t *testing.T) {
	p := New(WithModel("claude-3-5-haiku-latest"), WithMaxTokens(512))
	if p.Model() != "claude-3-5-haiku-latest" {
		t.Errorf("unexpected model %s", p.Model())
	}
	if p.maxTokens != 512 {
		t.Errorf("unexpected max tokens %d", p.maxTokens)
	}
}

func TestChatJoinsSystemPrompts(t *testing.T) {
	var body struct {
		System   []map[string]any `json:"system"`
		Messages []map[string]any `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "{\"intent\":\"visa\"}"}],
			"usage": {"input_tokens": 12, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL), WithAPIKey("test-key"))
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			llm.System("Reply in JSON."),
			llm.System("Classify the travel intent."),
			llm.User("Do I need a visa for Japan?"),
		},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != `{"intent":"visa"}` || resp.Usage.TotalTokens != 18 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(body.System) != 1 || body.System[0]["text"] != "Reply in JSON.\n\nClassify the travel intent." {
		t.Fatalf("unexpected system prompt: %+v", body.System)
	}
	if len(body.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(body.Messages))
	}
}
