// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jllopis/tripgraph/pkg/errors"
)

// FileSink keeps incidents as a JSON array in a single file.
type FileSink struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileSink creates a sink writing to path. The file is created on the
// first Append.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path, now: time.Now}
}

// Append implements Sink.
func (s *FileSink) Append(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return Entry{}, err
	}
	e = normalize(e, s.now())
	entries = append(entries, e)

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode incidents: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Entry{}, errors.New(errors.CodeStoreError, "failed to create incident dir", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Entry{}, errors.New(errors.CodeStoreError, "failed to write incidents", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return Entry{}, errors.New(errors.CodeStoreError, "failed to replace incident file", err)
	}
	return e, nil
}

// List implements Sink.
func (s *FileSink) List(context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileSink) read() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, errors.New(errors.CodeStoreError, "failed to read incidents", err)
	}
	var entries []Entry
	if len(data) == 0 {
		return []Entry{}, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.New(errors.CodeStoreError, "incident file is not a JSON array", err).
			WithContext("path", s.path)
	}
	return entries, nil
}

var _ Sink = (*FileSink)(nil)
