// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package incident

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// SQLiteSink stores incidents in SQLite.
type SQLiteSink struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSink creates a SQLite-backed sink and ensures schema.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS incidents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT,
			name TEXT,
			nationality TEXT,
			incident_location TEXT,
			original_message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	`); err != nil {
		return nil, errors.New(errors.CodeStoreError, "failed to create incident schema", err)
	}
	return &SQLiteSink{db: db, now: time.Now}, nil
}

// Append implements Sink.
func (s *SQLiteSink) Append(ctx context.Context, e Entry) (Entry, error) {
	e = normalize(e, s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, user_id, name, nationality, incident_location, original_message, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Name, e.Nationality, e.IncidentLocation, e.OriginalMessage, e.Timestamp, e.Status)
	if err != nil {
		return Entry{}, errors.New(errors.CodeStoreError, "failed to insert incident", err)
	}
	return e, nil
}

// List implements Sink.
func (s *SQLiteSink) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, nationality, incident_location, original_message, created_at, status
		FROM incidents ORDER BY seq ASC
	`)
	if err != nil {
		return nil, errors.New(errors.CodeStoreError, "failed to list incidents", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                                   Entry
			userID, name, nationality, location sql.NullString
		)
		if err := rows.Scan(&e.ID, &userID, &name, &nationality, &location, &e.OriginalMessage, &e.Timestamp, &e.Status); err != nil {
			return nil, err
		}
		e.UserID = userID.String
		e.Name = name.String
		e.Nationality = nationality.String
		e.IncidentLocation = location.String
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ Sink = (*SQLiteSink)(nil)
