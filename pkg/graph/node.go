// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"time"
)

// NodeFunc computes a patch from a state snapshot. Return errors.Soft to
// degrade to an empty patch; any other error aborts the run.
type NodeFunc func(ctx context.Context, state State) (Patch, error)

// NodeOption configures a node at registration.
type NodeOption func(*nodeSpec)

// WithTimeout bounds a node's execution. A node that exceeds it fails fatally
// unless WithSoftTimeout is also set.
func WithTimeout(d time.Duration) NodeOption {
	return func(n *nodeSpec) {
		n.timeout = d
	}
}

// WithSoftTimeout turns a node timeout into a soft failure.
func WithSoftTimeout() NodeOption {
	return func(n *nodeSpec) {
		n.softTimeout = true
	}
}

// WithDescription attaches a human readable description.
func WithDescription(description string) NodeOption {
	return func(n *nodeSpec) {
		n.description = description
	}
}

type nodeSpec struct {
	id          string
	fn          NodeFunc
	index       int
	timeout     time.Duration
	softTimeout bool
	description string
}

// NodeInfo describes a registered node.
type NodeInfo struct {
	ID          string        `json:"id"`
	Index       int           `json:"index"`
	Description string        `json:"description,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Router picks a route key from the merged state. It must be a pure function
// of the state.
type Router func(state State) string

type conditional struct {
	router Router
	routes map[string]string
}

// Scope identifies the node execution a context belongs to.
type Scope struct {
	GraphID   string
	RunID     string
	NodeID    string
	Superstep int
}

type scopeKey struct{}

// ContextWithScope returns ctx carrying sc. The scheduler sets it on the
// context every NodeFunc receives.
func ContextWithScope(ctx context.Context, sc Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, sc)
}

// ScopeFromContext returns the node scope stored in ctx, if any.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	sc, ok := ctx.Value(scopeKey{}).(Scope)
	return sc, ok
}
