// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists run snapshots so a conversation can continue in a
// later run, possibly in another process.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// Status is the outcome recorded for a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one persisted run. State holds the JSON-encoded graph state:
// the terminal state of a completed run, or the state the run started from
// when it failed.
type Record struct {
	RunID      string          `json:"run_id"`
	GraphID    string          `json:"graph_id"`
	Status     Status          `json:"status"`
	State      json.RawMessage `json:"state"`
	Supersteps int             `json:"supersteps"`
	Turns      int             `json:"turns"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Store persists run records keyed by run id.
type Store interface {
	// Save creates or replaces the record for rec.RunID.
	Save(ctx context.Context, rec Record) error
	// Load returns the record for runID or an errors.CodeNotFound error.
	Load(ctx context.Context, runID string) (*Record, error)
	// Delete removes runID. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error
	// List returns the ids of stored runs in ascending order.
	List(ctx context.Context) ([]string, error)
}

// NotFound returns the error reported for an unknown run.
func NotFound(runID string) error {
	return errors.New(errors.CodeNotFound, "run not found", nil).WithContext("run_id", runID)
}

// IsNotFound reports whether err means the run does not exist.
func IsNotFound(err error) bool {
	return errors.IsCode(err, errors.CodeNotFound)
}

func storeError(msg string, err error) error {
	return errors.New(errors.CodeStoreError, msg, err).WithRecoverable(true)
}
