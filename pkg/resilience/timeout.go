// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience bounds calls to external oracles with timeouts, retries,
// circuit breakers and fallbacks.
package resilience

import (
	"context"
	"time"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// Timeout runs fn with a deadline of d. A zero d runs fn without a deadline.
// Exceeding the deadline returns errors.CodeTimeout even when fn ignores its
// context.
func Timeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
	case res := <-done:
		if res.err == nil || ctx.Err() == nil {
			return res.value, res.err
		}
	}
	var zero T
	return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
		WithContext("timeout", d.String()).
		WithRecoverable(true)
}
