// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package storetest holds the behaviour every run store must share.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/run/store"
)

// RunContract verifies that s honours the store.Store contract.
func RunContract(t *testing.T, s store.Store) {
	ctx := context.Background()
	runID := "contract-" + time.Now().Format("20060102150405.000000000")
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := store.Record{
		RunID:      runID,
		GraphID:    "travel",
		Status:     store.StatusCompleted,
		State:      json.RawMessage(`{"intent":"itinerary","days":3}`),
		Supersteps: 4,
		Turns:      1,
		CreatedAt:  created,
		UpdatedAt:  created,
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, rec))
		loaded, err := s.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, rec.GraphID, loaded.GraphID)
		assert.Equal(t, rec.Status, loaded.Status)
		assert.JSONEq(t, string(rec.State), string(loaded.State))
		assert.Equal(t, 4, loaded.Supersteps)
		assert.True(t, created.Equal(loaded.CreatedAt))
	})

	t.Run("Save replaces", func(t *testing.T) {
		next := rec
		next.Status = store.StatusFailed
		next.Error = "boom"
		next.Turns = 2
		next.UpdatedAt = created.Add(time.Minute)
		require.NoError(t, s.Save(ctx, next))

		loaded, err := s.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusFailed, loaded.Status)
		assert.Equal(t, "boom", loaded.Error)
		assert.Equal(t, 2, loaded.Turns)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := s.Load(ctx, "missing-"+runID)
		require.Error(t, err)
		assert.True(t, store.IsNotFound(err))
	})

	t.Run("List", func(t *testing.T) {
		other := rec
		other.RunID = runID + "-b"
		require.NoError(t, s.Save(ctx, other))

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, runID)
		assert.Contains(t, ids, other.RunID)
		assert.IsNonDecreasing(t, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, runID))
		_, err := s.Load(ctx, runID)
		assert.True(t, store.IsNotFound(err))
		require.NoError(t, s.Delete(ctx, runID), "deleting twice is not an error")

		ids, err := s.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, runID)
	})
}
