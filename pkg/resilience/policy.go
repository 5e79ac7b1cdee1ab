// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"
)

// Policy combines the guards applied to one external call. Each attempt is
// bounded by Timeout; attempts are retried per Retry; the breaker sees every
// attempt.
type Policy struct {
	Timeout time.Duration
	Retry   *RetryConfig
	Breaker *CircuitBreaker
}

// Call runs fn under p.
func Call[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	attempt := func(ctx context.Context) (T, error) {
		return Guard(ctx, p.Breaker, func(ctx context.Context) (T, error) {
			return Timeout(ctx, p.Timeout, fn)
		})
	}
	if p.Retry == nil {
		return attempt(ctx)
	}
	return Retry(ctx, *p.Retry, attempt)
}

// Fallback runs fn and, when it fails, returns the result of fallback instead.
func Fallback[T any](ctx context.Context, fn func(context.Context) (T, error), fallback func(context.Context, error) (T, error)) (T, error) {
	value, err := fn(ctx)
	if err == nil {
		return value, nil
	}
	return fallback(ctx, err)
}
