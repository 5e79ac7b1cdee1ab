// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore keeps node events in the graph_audit_events table. It can
// share a database with the SQLite run store.
type SQLiteAuditStore struct {
	db *sql.DB
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS graph_audit_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	graph_id    TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	superstep   INTEGER NOT NULL,
	node_id     TEXT NOT NULL,
	status      TEXT NOT NULL,
	output_json TEXT,
	error_text  TEXT,
	started_at  TIMESTAMP,
	finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_graph_audit_run ON graph_audit_events(run_id, superstep);
CREATE INDEX IF NOT EXISTS idx_graph_audit_node ON graph_audit_events(node_id);
`

// NewSQLiteAuditStore creates the audit table in db if needed.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("audit store: nil database")
	}
	if _, err := db.Exec(auditSchema); err != nil {
		return nil, fmt.Errorf("audit store: create schema: %w", err)
	}
	return &SQLiteAuditStore{db: db}, nil
}

// Record implements AuditStore.
func (s *SQLiteAuditStore) Record(ctx context.Context, ev AuditEvent) error {
	output, err := encodeAuditOutput(ev.Output)
	if err != nil {
		return fmt.Errorf("audit store: encode output of %s: %w", ev.NodeID, err)
	}
	var finished sql.NullTime
	if !ev.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: normalizeAuditTime(ev.FinishedAt), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graph_audit_events
			(graph_id, run_id, superstep, node_id, status, output_json, error_text, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.GraphID, ev.RunID, ev.Superstep, ev.NodeID, string(ev.Status),
		string(output), ev.Error, normalizeAuditTime(ev.StartedAt), finished)
	return err
}

// List implements AuditStore. Events come back in recording order.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	where, args := filter.sqlWhere()
	query := `SELECT graph_id, run_id, superstep, node_id, status, output_json, error_text, started_at, finished_at
		FROM graph_audit_events` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Purge implements AuditStore.
func (s *SQLiteAuditStore) Purge(ctx context.Context, runID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM graph_audit_events WHERE run_id = ?`, runID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (f AuditFilter) sqlWhere() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		if value != "" {
			clauses = append(clauses, column+" = ?")
			args = append(args, value)
		}
	}
	add("graph_id", f.GraphID)
	add("run_id", f.RunID)
	add("node_id", f.NodeID)
	add("status", string(f.Status))
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanAuditEvent(rows *sql.Rows) (AuditEvent, error) {
	var (
		ev       AuditEvent
		status   string
		output   sql.NullString
		errText  sql.NullString
		started  sql.NullTime
		finished sql.NullTime
	)
	if err := rows.Scan(&ev.GraphID, &ev.RunID, &ev.Superstep, &ev.NodeID, &status,
		&output, &errText, &started, &finished); err != nil {
		return AuditEvent{}, err
	}
	ev.Status = NodeStatus(status)
	ev.Error = errText.String
	ev.StartedAt = started.Time
	ev.FinishedAt = finished.Time
	if output.Valid {
		// Undecodable output is dropped; the rest of the event is still useful.
		ev.Output, _ = decodeAuditOutput([]byte(output.String))
	}
	return ev, nil
}
