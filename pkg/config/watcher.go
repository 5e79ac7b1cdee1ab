// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWatchInterval is how often a Watcher polls its files.
const DefaultWatchInterval = time.Second

// Watcher polls a config file, and its profile file when one is selected,
// and reloads the configuration whenever either changes. A reload that fails
// keeps the previous configuration.
type Watcher struct {
	path     string
	profile  string
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[Config]

	mu        sync.Mutex
	stamps    map[string]fileStamp
	listeners []func(*Config)
	cancel    context.CancelFunc
	done      chan struct{}
}

type fileStamp struct {
	mod  time.Time
	size int64
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval. Non-positive values are ignored.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchProfile loads the given profile on every reload.
func WithWatchProfile(profile string) WatcherOption {
	return func(w *Watcher) { w.profile = profile }
}

// WithWatchLogger sets the logger for reload events.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher loads path once and returns a Watcher ready to Start.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		logger:   slog.Default(),
		stamps:   make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		return nil, err
	}
	w.current.Store(cfg)
	w.changed()
	return w, nil
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	return w.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start polls in the background until ctx is done or Stop is called.
// Calling Start on a running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
}

// Stop ends polling and waits for the background loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll reloads when a watched file changed and reports whether a new
// configuration was applied.
func (w *Watcher) poll() bool {
	if !w.changed() {
		return false
	}
	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		w.logger.Error("config.reload.failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return false
	}
	w.current.Store(cfg)
	w.logger.Info("config.reload.applied", slog.String("path", w.path))

	w.mu.Lock()
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return true
}

// changed refreshes the recorded stamps and reports whether any differ.
// A file that disappears counts as unchanged until it comes back.
func (w *Watcher) changed() bool {
	paths := []string{w.path}
	if p := profileConfigPath(w.path, w.profile); p != "" {
		paths = append(paths, p)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	dirty := false
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		stamp := fileStamp{mod: info.ModTime(), size: info.Size()}
		if prev, ok := w.stamps[p]; !ok || prev != stamp {
			w.stamps[p] = stamp
			dirty = true
		}
	}
	return dirty
}
