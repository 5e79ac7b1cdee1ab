// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package health reports whether the backends an assistant depends on are
// reachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status is the health state of a component.
type Status string

const (
	// StatusHealthy means the component is fully operational.
	StatusHealthy Status = "HEALTHY"
	// StatusDegraded means the component works with reduced capacity.
	StatusDegraded Status = "DEGRADED"
	// StatusUnhealthy means the component is not operational.
	StatusUnhealthy Status = "UNHEALTHY"
)

// Result is the outcome of one check.
type Result struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Report aggregates all checks. Status is the worst component status.
type Report struct {
	Status  Status   `json:"status"`
	Results []Result `json:"results"`
}

// Checker checks one component.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) Result

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context) Result { return f(ctx) }

// Ping builds a checker from a ping function: an error is unhealthy,
// otherwise healthy. critical=false reports failures as degraded.
func Ping(ping func(context.Context) error, critical bool) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			status := StatusUnhealthy
			if !critical {
				status = StatusDegraded
			}
			return Result{Status: status, Message: err.Error()}
		}
		return Result{Status: StatusHealthy}
	})
}

// Registry runs named checkers with a per-check timeout.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry. timeout <= 0 means 5 seconds.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout, now: time.Now}
}

// Register adds or replaces the checker for name.
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// CheckAll runs every checker concurrently. Results are sorted by component.
func (r *Registry) CheckAll(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	results := make([]Result, 0, len(checkers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.run(ctx, name, c)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Component < results[j].Component })

	report := Report{Status: StatusHealthy, Results: results}
	for _, res := range results {
		switch {
		case res.Status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case res.Status == StatusDegraded && report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	return report
}

func (r *Registry) run(ctx context.Context, name string, c Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := r.now()
	res := c.Check(ctx)
	res.Component = name
	res.Latency = r.now().Sub(start)
	if res.CheckedAt.IsZero() {
		res.CheckedAt = start.UTC()
	}
	if res.Status == "" {
		res.Status = StatusHealthy
	}
	return res
}

// Handler serves the report as JSON; unhealthy reports use status 503.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		report := r.CheckAll(req.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
