// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Redis stores records as JSON values with an index sorted set.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithTTL sets the expiration for run records.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix for run records.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis connects to the Redis server at address.
func NewRedis(address, password string, db int, opts ...RedisOption) *Redis {
	return NewRedisFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewRedisFromClient creates a store over an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "tripgraph:run:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(runID string) string {
	return r.prefix + runID
}

func (r *Redis) indexKey() string {
	return r.prefix + "index"
}

// Save implements Store.
func (r *Redis) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	// Index score is the expiry time; records without TTL never expire.
	score := float64(r.now().Add(r.ttl).Unix())
	if r.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(rec.RunID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{Score: score, Member: rec.RunID})
	if _, err := pipe.Exec(ctx); err != nil {
		return storeError("failed to save run to redis", err)
	}
	return nil
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, runID string) (*Record, error) {
	val, err := r.client.Get(ctx, r.key(runID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, NotFound(runID)
	}
	if err != nil {
		return nil, storeError("failed to load run from redis", err)
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, storeError("failed to decode run", err)
	}
	return &rec, nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, runID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.key(runID))
	pipe.ZRem(ctx, r.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeError("failed to delete run from redis", err)
	}
	return nil
}

// List implements Store. Expired entries are pruned from the index first.
func (r *Redis) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", r.now().Unix())
	if err := r.client.ZRemRangeByScore(ctx, r.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, storeError("failed to prune expired runs", err)
	}
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, storeError("failed to list runs", err)
	}
	// ZRANGE orders by score; callers expect id order.
	sort.Strings(ids)
	return ids, nil
}

// Ping checks that the server answers.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return storeError("redis ping failed", err)
	}
	return nil
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Redis)(nil)
