// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "llm:\n  model: m1\n")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	var seen []string
	w.OnChange(func(cfg *Config) { seen = append(seen, cfg.LLM.Model) })

	if w.poll() {
		t.Fatal("unchanged file should not reload")
	}

	// Different size, so the change is visible even with coarse mtimes.
	writeFile(t, path, "llm:\n  model: model-two\n")
	if !w.poll() {
		t.Fatal("expected a reload after the file changed")
	}
	if got := w.Config().LLM.Model; got != "model-two" {
		t.Errorf("model = %q, want model-two", got)
	}
	if len(seen) != 1 || seen[0] != "model-two" {
		t.Errorf("listeners saw %v", seen)
	}
}

func TestWatcherKeepsConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "engine:\n  max_supersteps: 7\n")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	called := false
	w.OnChange(func(*Config) { called = true })

	writeFile(t, path, "engine: [unterminated\n")
	if w.poll() {
		t.Fatal("a broken file must not be applied")
	}
	if called {
		t.Error("listeners ran for a failed reload")
	}
	if got := w.Config().Engine.MaxSupersteps; got != 7 {
		t.Errorf("max supersteps = %d, want the previous 7", got)
	}
}

func TestWatcherPicksUpProfileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "store:\n  driver: memory\n")

	w, err := NewWatcher(path, WithWatchProfile("dev"))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if got := w.Config().Store.Driver; got != "memory" {
		t.Fatalf("driver = %q before the profile exists", got)
	}

	writeFile(t, filepath.Join(dir, "config.dev.yaml"), "store:\n  driver: sqlite\n")
	if !w.poll() {
		t.Fatal("a new profile file should trigger a reload")
	}
	if got := w.Config().Store.Driver; got != "sqlite" {
		t.Errorf("driver = %q, want sqlite from the profile", got)
	}
}

func TestWatcherStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "llm: {}\n")

	w, err := NewWatcher(path, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start(context.Background())
	w.Start(context.Background())

	done := make(chan struct{})
	go func() {
		w.Stop()
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestNewWatcherMissingFile(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
