// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// DefaultMaxSupersteps bounds a run when Config.MaxSupersteps is unset.
const DefaultMaxSupersteps = 25

// Config tunes a Scheduler.
type Config struct {
	// MaxSupersteps aborts a run with SCHEDULER_RUNAWAY once exceeded.
	MaxSupersteps int
	// MaxConcurrency caps nodes running at once within a superstep; 0 means
	// unbounded.
	MaxConcurrency int
	// NodeTimeout applies to nodes registered without WithTimeout.
	NodeTimeout time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConfig replaces the scheduler configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		s.cfg = cfg
	}
}

// WithMaxSupersteps sets the superstep bound.
func WithMaxSupersteps(n int) Option {
	return func(s *Scheduler) {
		s.cfg.MaxSupersteps = n
	}
}

// WithMaxConcurrency bounds per-superstep parallelism.
func WithMaxConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.cfg.MaxConcurrency = n
	}
}

// WithNodeTimeout sets the default node deadline.
func WithNodeTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.cfg.NodeTimeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers lifecycle callbacks.
func WithObserver(observer Observer) Option {
	return func(s *Scheduler) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithAuditHook registers a hook for node transitions.
func WithAuditHook(hook AuditHook) Option {
	return func(s *Scheduler) {
		s.audit = hook
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// Scheduler executes a compiled graph in synchronous supersteps. A Scheduler
// holds no per-run state and may run many graphs concurrently.
type Scheduler struct {
	graph    *CompiledGraph
	cfg      Config
	logger   *slog.Logger
	observer Observer
	audit    AuditHook
	tracer   trace.Tracer
}

// NewScheduler creates a scheduler for g.
func NewScheduler(g *CompiledGraph, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:    g,
		logger:   slog.Default(),
		observer: NopObserver{},
		tracer:   otel.Tracer("tripgraph/graph"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxSupersteps <= 0 {
		s.cfg.MaxSupersteps = DefaultMaxSupersteps
	}
	return s
}

// Graph returns the compiled graph.
func (s *Scheduler) Graph() *CompiledGraph {
	return s.graph
}

// Result is the outcome of a successful run.
type Result struct {
	RunID      string
	State      State
	Supersteps int
	// Executed lists node ids in execution order: by superstep, then by
	// declaration order.
	Executed  []string
	Conflicts []Conflict
}

// outcome is what one node produced in a superstep.
type outcome struct {
	node     string
	patch    Patch
	err      error
	started  time.Time
	finished time.Time
}

// run tracks which nodes have been activated by a fired edge, scheduled into a
// frontier and completed.
type run struct {
	id        string
	activated map[string]bool
	scheduled map[string]bool
	completed map[string]bool
}

// Run executes the graph from its entry point until no node is ready. Every
// error is a *errors.RunError; no partial state is returned with it.
func (s *Scheduler) Run(ctx context.Context, runID string, initial State) (*Result, error) {
	g := s.graph
	ctx, span := s.tracer.Start(ctx, "Graph.Run", trace.WithAttributes(
		attribute.String("graph.id", g.id),
		attribute.String("run.id", runID),
	))
	defer span.End()

	log := s.logger.With(slog.String("graph_id", g.id), slog.String("run_id", runID))
	log.Info("graph.run.start", slog.String("entry", g.entry))
	s.observer.RunStarted(ctx, g.id, runID)

	res, err := s.loop(ctx, log, runID, initial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("graph.run.failed", slog.String("error", err.Error()))
		steps := 0
		if re, ok := err.(*errors.RunError); ok {
			steps = re.Superstep + 1
		}
		s.observer.RunFinished(ctx, g.id, runID, steps, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("graph.supersteps", res.Supersteps))
	log.Info("graph.run.complete",
		slog.Int("supersteps", res.Supersteps),
		slog.Int("executed", len(res.Executed)),
		slog.Int("conflicts", len(res.Conflicts)),
	)
	s.observer.RunFinished(ctx, g.id, runID, res.Supersteps, nil)
	return res, nil
}

func (s *Scheduler) loop(ctx context.Context, log *slog.Logger, runID string, initial State) (*Result, error) {
	g := s.graph
	state, err := s.initialState(initial)
	if err != nil {
		return nil, &errors.RunError{RunID: runID, Superstep: -1, Err: err}
	}

	r := &run{
		id:        runID,
		activated: map[string]bool{g.entry: true},
		scheduled: make(map[string]bool),
		completed: make(map[string]bool),
	}
	res := &Result{RunID: runID}
	frontier := []string{g.entry}

	for step := 0; len(frontier) > 0; step++ {
		if step >= s.cfg.MaxSupersteps {
			return nil, &errors.RunError{
				RunID:     runID,
				Superstep: step - 1,
				Err: errors.New(errors.CodeSchedulerRunaway, "superstep limit exceeded", nil).
					WithContext("max_supersteps", s.cfg.MaxSupersteps),
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, &errors.RunError{
				RunID:     runID,
				Superstep: step - 1,
				Err:       errors.New(errors.CodeTimeout, "run cancelled", err),
			}
		}

		for _, id := range frontier {
			r.scheduled[id] = true
		}
		log.Debug("graph.superstep.start", slog.Int("superstep", step), slog.Any("frontier", frontier))

		outcomes := s.dispatch(ctx, runID, step, state, frontier)

		var (
			fatal     error
			failedAt  string
			collected = make([]sourcedPatch, 0, len(outcomes))
		)
		for _, o := range outcomes {
			elapsed := o.finished.Sub(o.started)
			switch {
			case o.err == nil:
				s.emit(ctx, runID, step, o, NodeCompleted)
				s.observer.NodeFinished(ctx, g.id, o.node, NodeCompleted, elapsed)
				collected = append(collected, sourcedPatch{source: o.node, patch: o.patch})
			case errors.IsSoft(o.err):
				s.emit(ctx, runID, step, o, NodeSoftFailed)
				s.observer.NodeFinished(ctx, g.id, o.node, NodeSoftFailed, elapsed)
				log.Warn("graph.node.soft_failure",
					slog.Int("superstep", step),
					slog.String("node_id", o.node),
					slog.String("error", o.err.Error()),
				)
			default:
				s.emit(ctx, runID, step, o, NodeFailed)
				s.observer.NodeFinished(ctx, g.id, o.node, NodeFailed, elapsed)
				log.Error("graph.node.failure",
					slog.Int("superstep", step),
					slog.String("node_id", o.node),
					slog.String("error", o.err.Error()),
				)
				if failedAt == "" {
					failedAt = o.node
				}
				fatal = multierr.Append(fatal, o.err)
			}
		}
		if fatal != nil {
			return nil, &errors.RunError{RunID: runID, Superstep: step - 1, NodeID: failedAt, Err: fatal}
		}

		var conflicts []Conflict
		state, conflicts = g.schema.merge(state, collected)
		for _, c := range conflicts {
			log.Warn("graph.merge.conflict",
				slog.Int("superstep", step),
				slog.String("field", c.Field),
				slog.String("winner", c.Winner),
				slog.Any("overridden", c.Overridden),
			)
			s.observer.MergeConflict(ctx, g.id, c)
		}
		res.Conflicts = append(res.Conflicts, conflicts...)
		for _, id := range frontier {
			r.completed[id] = true
		}
		res.Executed = append(res.Executed, frontier...)

		if err := s.advance(r, step, state, frontier); err != nil {
			return nil, err
		}
		next := s.ready(r)
		if len(next) == 0 {
			if waiting := r.pending(g); len(waiting) > 0 {
				return nil, &errors.RunError{
					RunID:     runID,
					Superstep: step,
					NodeID:    waiting[0],
					Err: errors.New(errors.CodeSchedulerRunaway, "activated nodes can never become ready", nil).
						WithContext("waiting", waiting),
				}
			}
		}
		s.observer.SuperstepCompleted(ctx, g.id, step, len(frontier))
		res.Supersteps = step + 1
		frontier = next
	}

	res.State = state
	return res, nil
}

func (s *Scheduler) initialState(initial State) (State, error) {
	schema := s.graph.schema
	switch {
	case initial.schema == nil:
		return State{schema: schema, values: map[string]any{}}, nil
	case initial.schema == schema:
		return initial, nil
	default:
		return schema.NewState(Patch(initial.Values()))
	}
}

// dispatch runs every frontier node concurrently against the same snapshot
// and waits for all of them. Outcomes are returned in frontier order.
func (s *Scheduler) dispatch(ctx context.Context, runID string, step int, state State, frontier []string) []outcome {
	now := time.Now()
	for _, id := range frontier {
		s.emit(ctx, runID, step, outcome{node: id, started: now}, NodeStarted)
	}

	outcomes := make([]outcome, len(frontier))
	var eg errgroup.Group
	if s.cfg.MaxConcurrency > 0 {
		eg.SetLimit(s.cfg.MaxConcurrency)
	}
	for i, id := range frontier {
		spec := s.graph.nodes[id]
		eg.Go(func() error {
			outcomes[i] = s.execute(ctx, runID, step, spec, state)
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

func (s *Scheduler) execute(ctx context.Context, runID string, step int, spec *nodeSpec, state State) outcome {
	ctx, span := s.tracer.Start(ctx, "Graph.Node", trace.WithAttributes(
		attribute.String("graph.id", s.graph.id),
		attribute.String("run.id", runID),
		attribute.String("node.id", spec.id),
		attribute.Int("graph.superstep", step),
	))
	defer span.End()
	ctx = ContextWithScope(ctx, Scope{GraphID: s.graph.id, RunID: runID, NodeID: spec.id, Superstep: step})

	o := outcome{node: spec.id, started: time.Now()}
	patch, err := s.invoke(ctx, spec, state)
	if err == nil {
		patch, err = s.graph.schema.normalizePatch(patch)
		if err != nil {
			err = errors.Fatal(fmt.Sprintf("node %q returned a malformed patch", spec.id), err)
		}
	}
	o.finished = time.Now()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.err = err
		return o
	}
	o.patch = patch
	return o
}

// invoke calls the node function under its deadline and classifies the error.
func (s *Scheduler) invoke(ctx context.Context, spec *nodeSpec, state State) (Patch, error) {
	timeout := spec.timeout
	if timeout == 0 {
		timeout = s.cfg.NodeTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		patch Patch
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: errors.Fatal(fmt.Sprintf("node %q panicked: %v", spec.id, r), nil)}
			}
		}()
		patch, err := spec.fn(ctx, state)
		done <- result{patch: patch, err: err}
	}()

	select {
	case <-ctx.Done():
	case res := <-done:
		// A node that gives up because its deadline passed still counts as a timeout.
		if res.err == nil || ctx.Err() == nil {
			return res.patch, classify(spec.id, res.err)
		}
	}
	cause := errors.New(errors.CodeTimeout, "node exceeded timeout", ctx.Err()).
		WithContext("node", spec.id).
		WithContext("timeout", timeout.String())
	if spec.softTimeout {
		return nil, errors.Soft(fmt.Sprintf("node %q timed out", spec.id), cause)
	}
	return nil, errors.Fatal(fmt.Sprintf("node %q timed out", spec.id), cause)
}

// classify maps a node error onto the soft/fatal taxonomy. Untyped errors are
// fatal.
func classify(node string, err error) error {
	if err == nil {
		return nil
	}
	switch errors.CodeOf(err) {
	case errors.CodeNodeSoftFailure, errors.CodeNodeFatalFailure:
		return err
	}
	return errors.Fatal(fmt.Sprintf("node %q failed", node), err)
}

// advance fires the edges of every node in the frontier against the merged
// state. A fired edge into a node that was already scheduled is a re-entry.
func (s *Scheduler) advance(r *run, step int, state State, frontier []string) error {
	g := s.graph
	for _, id := range frontier {
		targets := g.successors[id]
		if g.IsConditional(id) {
			key, target, err := s.route(id, state)
			if err != nil {
				return &errors.RunError{RunID: r.id, Superstep: step, NodeID: id, Err: err}
			}
			s.logger.Debug("graph.route",
				slog.String("run_id", r.id),
				slog.String("node_id", id),
				slog.String("key", key),
				slog.String("target", target),
			)
			targets = []string{target}
		}
		for _, to := range targets {
			if to == END {
				continue
			}
			if r.scheduled[to] {
				return &errors.RunError{
					RunID:     r.id,
					Superstep: step,
					NodeID:    id,
					Err: errors.New(errors.CodeSchedulerRunaway, fmt.Sprintf("edge %s -> %s re-enters an executed node", id, to), nil).
						WithContext("target", to),
				}
			}
			r.activated[to] = true
		}
	}
	return nil
}

// route resolves the branch taken from id. A router that panics or returns
// an unmapped key is a routing error.
func (s *Scheduler) route(id string, state State) (key, target string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CodeRoutingError, fmt.Sprintf("router of %q panicked: %v", id, r), nil).
				WithContext("node", id)
		}
	}()
	key, target, ok := s.graph.Route(id, state)
	if !ok {
		return key, "", errors.New(errors.CodeRoutingError, fmt.Sprintf("route %q not mapped", key), nil).
			WithContext("node", id)
	}
	return key, target, nil
}

// ready returns the activated nodes whose predecessors have all completed or
// can no longer run in this run, in declaration order.
func (s *Scheduler) ready(r *run) []string {
	g := s.graph
	pending := r.pending(g)
	if len(pending) == 0 {
		return nil
	}

	// live holds every node still able to execute: the pending nodes and
	// everything they may activate.
	live := make(map[string]bool)
	queue := append([]string(nil), pending...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if live[id] {
			continue
		}
		live[id] = true
		queue = append(queue, g.potential[id]...)
	}

	var out []string
	for _, id := range pending {
		ok := true
		for _, pred := range g.predecessors[id] {
			if pred == id || r.completed[pred] {
				continue
			}
			if live[pred] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// pending returns activated nodes not yet scheduled, in declaration order.
func (r *run) pending(g *CompiledGraph) []string {
	var out []string
	for _, id := range g.order {
		if r.activated[id] && !r.scheduled[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Scheduler) emit(ctx context.Context, runID string, step int, o outcome, status NodeStatus) {
	if s.audit == nil {
		return
	}
	ev := AuditEvent{
		GraphID:    s.graph.id,
		RunID:      runID,
		Superstep:  step,
		NodeID:     o.node,
		Status:     status,
		StartedAt:  o.started,
		FinishedAt: o.finished,
	}
	if status == NodeCompleted && len(o.patch) > 0 {
		ev.Output = map[string]any(o.patch)
	}
	if o.err != nil {
		ev.Error = o.err.Error()
	}
	s.audit(ctx, ev)
}
