// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/errors"
)

func fanoutRegistry() *Registry {
	return NewRegistry().
		Handle("classify", func(context.Context, State) (Patch, error) {
			return Patch{"route": "right", "log": "classify"}, nil
		}).
		Handle("echo", func(context.Context, State) (Patch, error) {
			return Patch{"log": "echo"}, nil
		}).
		Router("by_route", func(s State) string {
			r, _ := s.String("route")
			return r
		})
}

func TestLoadDefinitionYAML(t *testing.T) {
	def, err := LoadDefinition(filepath.Join("testdata", "fanout.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fanout", def.ID)
	require.Len(t, def.Nodes, 4)

	cg, err := def.Compile(fanoutRegistry())
	require.NoError(t, err)
	info, ok := cg.Node("right")
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, info.Timeout)
	assert.Equal(t, []string{"left", "right"}, cg.Predecessors("join"))

	res, err := NewScheduler(cg).Run(context.Background(), "run", State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"classify", "echo", "echo"}, res.State.Strings("log"))
	assert.Equal(t, []string{"classify", "right", "join"}, res.Executed)
}

func TestDefinitionUnresolvedNames(t *testing.T) {
	def, err := LoadDefinition(filepath.Join("testdata", "fanout.yaml"))
	require.NoError(t, err)

	_, err = def.Compile(NewRegistry().Handle("classify", noop))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidGraph))
	assert.Contains(t, err.Error(), `handler "echo" not registered`)
	assert.Contains(t, err.Error(), `router "by_route" not registered`)
}

func TestDescribeRoundTripsThroughJSON(t *testing.T) {
	def, err := LoadDefinition(filepath.Join("testdata", "fanout.yaml"))
	require.NoError(t, err)
	cg, err := def.Compile(fanoutRegistry())
	require.NoError(t, err)

	described := Describe(cg)
	data, err := json.Marshal(described)
	require.NoError(t, err)
	parsed, err := ParseDefinitionJSON(data)
	require.NoError(t, err)

	assert.Equal(t, def.Entry, parsed.Entry)
	assert.Len(t, parsed.Nodes, len(def.Nodes))
	assert.Len(t, parsed.Edges, len(def.Edges))
	require.Len(t, parsed.Branches, 1)
	assert.Equal(t, END, parsed.Branches[0].Routes["stop"])
}

func TestParseDefinitionEmpty(t *testing.T) {
	_, err := ParseDefinitionYAML(nil)
	assert.Error(t, err)
	_, err = ParseDefinitionJSON([]byte{})
	assert.Error(t, err)
}
