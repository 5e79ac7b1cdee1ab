// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite stores records in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeError("failed to open sqlite", err)
	}
	s, err := NewSQLite(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite creates a SQLite-backed store and ensures schema.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS graph_runs (
			run_id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			status TEXT NOT NULL,
			state_json TEXT NOT NULL,
			supersteps INTEGER NOT NULL,
			turns INTEGER NOT NULL,
			error_text TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`); err != nil {
		return nil, storeError("failed to create run schema", err)
	}
	return &SQLite{db: db}, nil
}

// Save implements Store.
func (s *SQLite) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_runs (run_id, graph_id, status, state_json, supersteps, turns, error_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			graph_id = excluded.graph_id,
			status = excluded.status,
			state_json = excluded.state_json,
			supersteps = excluded.supersteps,
			turns = excluded.turns,
			error_text = excluded.error_text,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`,
		rec.RunID,
		rec.GraphID,
		string(rec.Status),
		string(rec.State),
		rec.Supersteps,
		rec.Turns,
		rec.Error,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return storeError("failed to save run", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLite) Load(ctx context.Context, runID string) (*Record, error) {
	var (
		rec     Record
		status  string
		state   string
		errText sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, graph_id, status, state_json, supersteps, turns, error_text, created_at, updated_at
		FROM graph_runs WHERE run_id = ?
	`, runID).Scan(&rec.RunID, &rec.GraphID, &status, &state, &rec.Supersteps, &rec.Turns, &errText, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound(runID)
	}
	if err != nil {
		return nil, storeError("failed to load run", err)
	}
	rec.Status = Status(status)
	rec.State = []byte(state)
	rec.Error = errText.String
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM graph_runs WHERE run_id = ?`, runID); err != nil {
		return storeError("failed to delete run", err)
	}
	return nil
}

// List implements Store.
func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM graph_runs ORDER BY run_id ASC`)
	if err != nil {
		return nil, storeError("failed to list runs", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)
