// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package run owns graph runs: it assigns run ids, drives the scheduler,
// persists terminal state and continues stored runs with new input.
package run

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/run/store"
)

// Controller runs a compiled graph. It is safe for concurrent use; runs with
// different ids share no state, and a run id can only be active once.
type Controller struct {
	graph     *graph.CompiledGraph
	scheduler *graph.Scheduler
	store     store.Store
	logger    *slog.Logger
	now       func() time.Time

	schedOpts []graph.Option

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore persists every finished run in s.
func WithStore(s store.Store) Option {
	return func(c *Controller) {
		c.store = s
	}
}

// WithLogger sets the logger used by the controller and its scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSchedulerOptions passes options through to the scheduler.
func WithSchedulerOptions(opts ...graph.Option) Option {
	return func(c *Controller) {
		c.schedOpts = append(c.schedOpts, opts...)
	}
}

// WithAuditStore records every node event in audit. Recording failures are
// logged and never abort a run.
func WithAuditStore(audit graph.AuditStore) Option {
	return func(c *Controller) {
		c.schedOpts = append(c.schedOpts, graph.WithAuditHook(graph.RecordingHook(audit, func(err error) {
			c.logger.Warn("run.audit.failed", slog.String("error", err.Error()))
		})))
	}
}

// NewController creates a controller for g.
func NewController(g *graph.CompiledGraph, opts ...Option) *Controller {
	c := &Controller{
		graph:  g,
		logger: slog.Default(),
		now:    time.Now,
		active: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	schedOpts := append([]graph.Option{graph.WithLogger(c.logger)}, c.schedOpts...)
	c.scheduler = graph.NewScheduler(g, schedOpts...)
	return c
}

// Graph returns the compiled graph.
func (c *Controller) Graph() *graph.CompiledGraph {
	return c.graph
}

// Start runs the graph from initial under runID and returns the terminal
// state. An empty runID gets a fresh uuid. Every failure is a
// *errors.RunError.
func (c *Controller) Start(ctx context.Context, initial graph.State, runID string) (graph.State, error) {
	res, err := c.Run(ctx, runID, initial)
	if err != nil {
		return graph.State{}, err
	}
	return res.State, nil
}

// Run is Start returning the full scheduler result.
func (c *Controller) Run(ctx context.Context, runID string, initial graph.State) (*graph.Result, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	if err := c.acquire(runID); err != nil {
		return nil, err
	}
	defer c.release(runID)
	return c.execute(ctx, runID, initial, nil, nil)
}

// Resume loads the stored state of runID, applies patch with the schema's
// merge policies and runs the graph again under the same id. Use it to add
// the next user message to a conversation.
func (c *Controller) Resume(ctx context.Context, runID string, patch graph.Patch) (graph.State, error) {
	if c.store == nil {
		return graph.State{}, &errors.RunError{RunID: runID, Superstep: -1, Err: errNoStore()}
	}
	res, err := c.Turn(ctx, runID, func(prev *graph.State) (graph.State, error) {
		if prev == nil {
			return graph.State{}, store.NotFound(runID)
		}
		return c.graph.Schema().Apply(*prev, patch)
	})
	if err != nil {
		return graph.State{}, err
	}
	return res.State, nil
}

// Prepare builds the starting state of a turn. prev is the stored state of
// the run, or nil when the run is new or runs are not persisted.
type Prepare func(prev *graph.State) (graph.State, error)

// TurnOption customises a single Turn.
type TurnOption func(*turnConfig)

type turnConfig struct {
	finish func(context.Context, graph.State) (graph.State, error)
}

// WithFinish rewrites the terminal state of a successful turn before it is
// saved and returned. An error from fn fails the turn.
func WithFinish(fn func(context.Context, graph.State) (graph.State, error)) TurnOption {
	return func(tc *turnConfig) { tc.finish = fn }
}

// Turn runs one turn of runID. The run is held from loading its stored
// state until the outcome is saved, so a concurrent turn on the same id
// fails with CodeRunConflict instead of working on a stale snapshot. An
// empty runID gets a fresh uuid.
func (c *Controller) Turn(ctx context.Context, runID string, prepare Prepare, opts ...TurnOption) (*graph.Result, error) {
	var tc turnConfig
	for _, opt := range opts {
		opt(&tc)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	if err := c.acquire(runID); err != nil {
		return nil, err
	}
	defer c.release(runID)

	var (
		prev *graph.State
		rec  *store.Record
	)
	if c.store != nil {
		st, r, err := c.Load(ctx, runID)
		switch {
		case err == nil:
			prev, rec = &st, r
		case !store.IsNotFound(err):
			return nil, &errors.RunError{RunID: runID, Superstep: -1, Err: err}
		}
	}
	initial, err := prepare(prev)
	if err != nil {
		return nil, &errors.RunError{RunID: runID, Superstep: -1, Err: err}
	}
	return c.execute(ctx, runID, initial, rec, tc.finish)
}

// Load returns the stored state of runID.
func (c *Controller) Load(ctx context.Context, runID string) (graph.State, *store.Record, error) {
	if c.store == nil {
		return graph.State{}, nil, errNoStore()
	}
	rec, err := c.store.Load(ctx, runID)
	if err != nil {
		return graph.State{}, nil, err
	}
	st, err := c.graph.Schema().DecodeState(rec.State)
	if err != nil {
		return graph.State{}, nil, errors.New(errors.CodeStoreError, "stored state does not match the graph schema", err).
			WithContext("run_id", runID)
	}
	return st, rec, nil
}

// Persistent reports whether runs are stored and can be resumed.
func (c *Controller) Persistent() bool {
	return c.store != nil
}

// Exists reports whether a stored run with runID exists. Without a store
// nothing exists.
func (c *Controller) Exists(ctx context.Context, runID string) (bool, error) {
	if c.store == nil || runID == "" {
		return false, nil
	}
	if _, err := c.store.Load(ctx, runID); err != nil {
		if store.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// execute runs initial and saves the outcome. The caller holds runID.
func (c *Controller) execute(ctx context.Context, runID string, initial graph.State, prev *store.Record,
	finish func(context.Context, graph.State) (graph.State, error)) (*graph.Result, error) {
	res, runErr := c.scheduler.Run(ctx, runID, initial)
	if runErr == nil && finish != nil {
		st, err := finish(ctx, res.State)
		if err != nil {
			runErr = &errors.RunError{RunID: runID, Superstep: res.Supersteps - 1, Err: err}
		} else {
			res.State = st
		}
	}
	if c.store == nil {
		return res, runErr
	}

	rec := store.Record{
		RunID:     runID,
		GraphID:   c.graph.ID(),
		CreatedAt: c.now().UTC(),
		UpdatedAt: c.now().UTC(),
		Turns:     1,
	}
	if prev != nil {
		rec.CreatedAt = prev.CreatedAt
		rec.Turns = prev.Turns + 1
	}

	snapshot := initial
	if runErr != nil {
		rec.Status = store.StatusFailed
		rec.Error = runErr.Error()
		var re *errors.RunError
		if stderrors.As(runErr, &re) {
			rec.Supersteps = re.Superstep + 1
		}
	} else {
		rec.Status = store.StatusCompleted
		rec.Supersteps = res.Supersteps
		snapshot = res.State
	}

	data, err := json.Marshal(snapshot)
	if err == nil {
		rec.State = data
		err = c.store.Save(ctx, rec)
	}
	if err != nil {
		c.logger.Error("run.store.failed", slog.String("run_id", runID), slog.String("error", err.Error()))
		if runErr == nil {
			return nil, &errors.RunError{RunID: runID, Superstep: res.Supersteps - 1, Err: err}
		}
	}
	return res, runErr
}

func errNoStore() error {
	return errors.New(errors.CodeStoreError, "no run store configured", nil)
}

func (c *Controller) acquire(runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.active[runID]; busy {
		return &errors.RunError{
			RunID:     runID,
			Superstep: -1,
			Err:       errors.New(errors.CodeRunConflict, "run is already in progress", nil).WithRecoverable(true),
		}
	}
	c.active[runID] = struct{}{}
	return nil
}

func (c *Controller) release(runID string) {
	c.mu.Lock()
	delete(c.active, runID)
	c.mu.Unlock()
}
