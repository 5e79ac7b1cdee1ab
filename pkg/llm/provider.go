// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm defines the language model oracle used by graph nodes and the
// providers that back it.
package llm

import (
	"context"
	"strings"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single unit of conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ChatRequest encapsulates the input for the LLM.
type ChatRequest struct {
	// Model overrides the provider default when set.
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	// JSON asks the provider for a JSON object when it supports a dedicated mode.
	JSON bool `json:"json,omitempty"`
}

// ChatResponse encapsulates the output from the LLM.
type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for interacting with LLM backends.
type Provider interface {
	// Chat sends a chat request to the LLM and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Complete sends msgs to p and returns the trimmed text reply. Provider
// failures are reported as LLM_ERROR.
func Complete(ctx context.Context, p Provider, msgs ...Message) (string, error) {
	resp, err := p.Chat(ctx, ChatRequest{Messages: msgs})
	if err != nil {
		if errors.IsCode(err, errors.CodeLLMError) || errors.IsCode(err, errors.CodeTimeout) {
			return "", err
		}
		return "", errors.New(errors.CodeLLMError, "completion failed", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// defaulted fills unset request options before delegating.
type defaulted struct {
	Provider
	model       string
	temperature float64
}

// WithDefaults returns a Provider that applies model and temperature to
// every request that does not set them.
func WithDefaults(p Provider, model string, temperature float64) Provider {
	return &defaulted{Provider: p, model: model, temperature: temperature}
}

func (d *defaulted) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = d.model
	}
	if req.Temperature == 0 {
		req.Temperature = d.temperature
	}
	return d.Provider.Chat(ctx, req)
}
