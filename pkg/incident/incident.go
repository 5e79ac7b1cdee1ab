// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package incident records emergency cases reported by travellers so a human
// can follow up on them.
package incident

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusOpen marks an incident nobody has handled yet.
const StatusOpen = "OPEN"

// Entry is one logged incident.
type Entry struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	Nationality      string    `json:"nationality"`
	IncidentLocation string    `json:"incident_location"`
	OriginalMessage  string    `json:"original_message"`
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
}

// Sink stores incident entries.
type Sink interface {
	// Append stores e and returns it with its id, timestamp and status
	// filled in.
	Append(ctx context.Context, e Entry) (Entry, error)
	// List returns stored entries, oldest first.
	List(ctx context.Context) ([]Entry, error)
}

func normalize(e Entry, now time.Time) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Second)
	if e.Status == "" {
		e.Status = StatusOpen
	}
	return e
}
