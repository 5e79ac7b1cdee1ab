// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package incident

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/errors"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func exerciseSink(t *testing.T, sink Sink) {
	t.Helper()
	ctx := context.Background()

	got, err := sink.Append(ctx, Entry{
		UserID:           "u-1",
		Name:             "Asha",
		Nationality:      "Indian",
		IncidentLocation: "London",
		OriginalMessage:  "I lost my passport in London",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, StatusOpen, got.Status)
	assert.Equal(t, fixedNow(), got.Timestamp)

	_, err = sink.Append(ctx, Entry{OriginalMessage: "My wallet was stolen", Status: "CLOSED"})
	require.NoError(t, err)

	entries, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, got, entries[0])
	assert.Equal(t, "CLOSED", entries[1].Status)
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "emergency_logs.json")
	sink := NewFileSink(path)
	sink.now = fixedNow

	entries, err := sink.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	exerciseSink(t, sink)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "OPEN", raw[0]["status"])
	assert.Equal(t, "London", raw[0]["incident_location"])
}

func TestFileSinkRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emergency_logs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644))

	_, err := NewFileSink(path).Append(context.Background(), Entry{OriginalMessage: "help"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStoreError))
}

func TestSQLiteSink(t *testing.T) {
	db, err := sql.Open("sqlite", "file:incident_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	sink, err := NewSQLiteSink(db)
	require.NoError(t, err)
	sink.now = fixedNow

	exerciseSink(t, sink)
}
