// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/resilience"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{User("Hi")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestCompleteWrapsProviderErrors(t *testing.T) {
	_, err := Complete(context.Background(), &MockProvider{Err: fmt.Errorf("connection refused")}, User("hi"))
	if !errors.IsCode(err, errors.CodeLLMError) {
		t.Fatalf("expected LLM_ERROR, got %v", err)
	}

	out, err := Complete(context.Background(), &MockProvider{Response: "  Paris  \n"}, User("capital?"))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "Paris" {
		t.Fatalf("expected trimmed reply, got %q", out)
	}
}

type intent struct {
	Intent string `json:"intent"`
	Days   int    `json:"days"`
}

func (i intent) Validate() error {
	if i.Intent == "" {
		return fmt.Errorf("intent is required")
	}
	if i.Days < 0 {
		return fmt.Errorf("days must not be negative")
	}
	return nil
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantOK   bool
		wantDays int
	}{
		{name: "plain object", reply: `{"intent":"itinerary","days":4}`, wantOK: true, wantDays: 4},
		{name: "fenced object", reply: "```json\n{\"intent\":\"hotel\"}\n```", wantOK: true},
		{name: "not json", reply: "I think you want a hotel", wantOK: false},
		{name: "wrong type", reply: `{"intent":"visa","days":"three"}`, wantOK: false},
		{name: "fails validation", reply: `{"days":2}`, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewScriptedProvider(tt.reply)
			res, err := Extract[intent](context.Background(), p, []Message{User("Plan a trip")}, `{"intent": string, "days": int}`)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if res.OK() != tt.wantOK {
				t.Fatalf("OK() = %v, want %v (reason %q)", res.OK(), tt.wantOK, res.Reason())
			}
			if !tt.wantOK {
				if res.Reason() == "" {
					t.Fatal("expected a validation reason")
				}
				return
			}
			v, _ := res.Value()
			if v.Days != tt.wantDays {
				t.Fatalf("days = %d, want %d", v.Days, tt.wantDays)
			}
			if !p.Requests[0].JSON || p.Requests[0].Messages[0].Role != RoleSystem {
				t.Fatalf("expected a JSON request led by a system instruction: %+v", p.Requests[0])
			}
		})
	}
}

func TestExtractTransportError(t *testing.T) {
	p := &ScriptedProvider{Err: fmt.Errorf("timeout")}
	_, err := Extract[intent](context.Background(), p, []Message{User("hi")}, "")
	if !errors.IsCode(err, errors.CodeLLMError) {
		t.Fatalf("expected LLM_ERROR, got %v", err)
	}
}

func TestExtractionValueOr(t *testing.T) {
	fallback := intent{Intent: "general"}
	if got := ValidationError[intent]("bad", "").ValueOr(fallback); got != fallback {
		t.Fatalf("unexpected fallback: %+v", got)
	}
	if got := Ok(intent{Intent: "visa"}).ValueOr(fallback); got.Intent != "visa" {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestOllamaChat(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Message:         Assistant(`{"intent":"visa"}`),
			Done:            true,
			PromptEvalCount: 7,
			EvalCount:       3,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, WithOllamaModel("qwen2.5"))
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{User("visa for Japan?")}, JSON: true})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got.Model != "qwen2.5" || got.Format != "json" || got.Stream {
		t.Fatalf("unexpected request: %+v", got)
	}
	if resp.Content != `{"intent":"visa"}` || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOllamaChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL).Chat(context.Background(), ChatRequest{Messages: []Message{User("hi")}})
	if !errors.IsCode(err, errors.CodeLLMError) {
		t.Fatalf("expected LLM_ERROR, got %v", err)
	}
}

func TestGuardedProviderTimesOut(t *testing.T) {
	slow := &MockProvider{ChatFunc: func(ctx context.Context, _ ChatRequest) (*ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	p := Guarded(slow, resilience.Policy{Timeout: 10 * time.Millisecond})
	_, err := Complete(context.Background(), p, User("hi"))
	if !errors.IsCode(err, errors.CodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	scripted := NewScriptedProvider("a", "b")
	p := WithDefaults(scripted, "llama-3.1-8b-instant", 0.2)

	if _, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{User("hi")}}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := p.Chat(context.Background(), ChatRequest{Model: "other", Temperature: 0.9}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	first, second := scripted.Requests[0], scripted.Requests[1]
	if first.Model != "llama-3.1-8b-instant" || first.Temperature != 0.2 {
		t.Fatalf("defaults not applied: %+v", first)
	}
	if second.Model != "other" || second.Temperature != 0.9 {
		t.Fatalf("explicit options overridden: %+v", second)
	}
}
