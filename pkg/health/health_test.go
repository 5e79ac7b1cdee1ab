// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestCheckAllAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		checkers map[string]Checker
		want     Status
	}{
		{name: "empty", checkers: nil, want: StatusHealthy},
		{name: "all healthy", checkers: map[string]Checker{"store": Ping(ok, true), "search": Ping(ok, false)}, want: StatusHealthy},
		{
			name: "optional failure degrades",
			checkers: map[string]Checker{
				"store":  Ping(ok, true),
				"search": Ping(func(context.Context) error { return errors.New("qdrant down") }, false),
			},
			want: StatusDegraded,
		},
		{
			name: "critical failure",
			checkers: map[string]Checker{
				"store":  Ping(func(context.Context) error { return errors.New("locked") }, true),
				"search": Ping(func(context.Context) error { return errors.New("qdrant down") }, false),
			},
			want: StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(time.Second)
			for name, c := range tt.checkers {
				r.Register(name, c)
			}
			report := r.CheckAll(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Results, len(tt.checkers))
		})
	}
}

func TestCheckAllSortsAndTimesOut(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("zeta", Ping(ok, true))
	r.Register("alpha", Ping(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, true))

	report := r.CheckAll(context.Background())
	require.Len(t, report.Results, 2)
	assert.Equal(t, "alpha", report.Results[0].Component)
	assert.Equal(t, StatusUnhealthy, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Message, "deadline exceeded")
	assert.Equal(t, "zeta", report.Results[1].Component)
}

func TestHandler(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("store", Ping(ok, true))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusHealthy, report.Status)

	r.Register("store", Ping(func(context.Context) error { return errors.New("gone") }, true))
	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
