// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"

	"github.com/jllopis/tripgraph/pkg/resilience"
)

// GuardedProvider applies a resilience policy to every Chat call.
type GuardedProvider struct {
	inner  Provider
	policy resilience.Policy
}

// Guarded wraps p so each call is bounded by policy.
func Guarded(p Provider, policy resilience.Policy) *GuardedProvider {
	return &GuardedProvider{inner: p, policy: policy}
}

// Chat implements Provider.
func (g *GuardedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return resilience.Call(ctx, g.policy, func(ctx context.Context) (*ChatResponse, error) {
		return g.inner.Chat(ctx, req)
	})
}

var _ Provider = (*GuardedProvider)(nil)
