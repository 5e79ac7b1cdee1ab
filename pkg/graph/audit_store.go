// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// AuditEvent records one node transition within a run.
type AuditEvent struct {
	GraphID    string     `json:"graph_id"`
	RunID      string     `json:"run_id"`
	Superstep  int        `json:"superstep"`
	NodeID     string     `json:"node_id"`
	Status     NodeStatus `json:"status"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// AuditHook receives audit events from the scheduler goroutine, in node
// declaration order within a superstep.
type AuditHook func(ctx context.Context, event AuditEvent)

// AuditStore persists audit events.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
	// Purge removes every event of a run and reports how many were removed.
	Purge(ctx context.Context, runID string) (int, error)
}

// AuditFilter limits audit event queries.
type AuditFilter struct {
	GraphID string
	RunID   string
	NodeID  string
	Status  NodeStatus
	Limit   int
}

func (f AuditFilter) match(ev AuditEvent) bool {
	if f.GraphID != "" && ev.GraphID != f.GraphID {
		return false
	}
	if f.RunID != "" && ev.RunID != f.RunID {
		return false
	}
	if f.NodeID != "" && ev.NodeID != f.NodeID {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	return true
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record appends an audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Purge implements AuditStore.
func (s *MemoryAuditStore) Purge(_ context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.RunID != runID {
			kept = append(kept, ev)
		}
	}
	removed := len(s.events) - len(kept)
	clear(s.events[len(kept):])
	s.events = kept
	return removed, nil
}

// RecordingHook adapts a store into an AuditHook. Store errors are passed to
// onErr when it is non-nil.
func RecordingHook(store AuditStore, onErr func(error)) AuditHook {
	return func(ctx context.Context, event AuditEvent) {
		if err := store.Record(ctx, event); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// encodeAuditOutput marshals the output payload into JSON.
func encodeAuditOutput(output any) ([]byte, error) {
	if output == nil {
		return []byte("null"), nil
	}
	return json.Marshal(output)
}

// decodeAuditOutput parses JSON output payload.
func decodeAuditOutput(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeAuditTime ensures timestamps are in UTC.
func normalizeAuditTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
