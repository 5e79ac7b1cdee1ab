// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package store_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/run/store"
	"github.com/jllopis/tripgraph/pkg/run/store/storetest"
)

func TestMemoryStore_Contract(t *testing.T) {
	storetest.RunContract(t, store.NewMemory())
}

func TestSQLiteStore_Contract(t *testing.T) {
	db, err := sql.Open("sqlite", "file:run_store_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	s, err := store.NewSQLite(db)
	require.NoError(t, err)
	storetest.RunContract(t, s)
}

func TestRedisStore_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	storetest.RunContract(t, store.NewRedisFromClient(client))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := store.NewRedisFromClient(client, store.WithTTL(time.Minute), store.WithPrefix("test:run:"))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, store.Record{
		RunID:   "short-lived",
		GraphID: "travel",
		Status:  store.StatusCompleted,
		State:   json.RawMessage(`{}`),
	}))
	assert.True(t, mr.Exists("test:run:short-lived"))

	mr.FastForward(2 * time.Minute)
	_, err = s.Load(ctx, "short-lived")
	assert.True(t, store.IsNotFound(err))
}

func TestRedisStore_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	s := store.NewRedisFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}))
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestMemoryStoreCopiesState(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	state := json.RawMessage(`{"a":1}`)
	require.NoError(t, s.Save(ctx, store.Record{RunID: "r", State: state}))
	state[2] = 'b'

	loaded, err := s.Load(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(loaded.State))
}
