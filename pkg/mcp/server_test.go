// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/incident"
	"github.com/jllopis/tripgraph/pkg/llm"
	"github.com/jllopis/tripgraph/pkg/travel"
)

type stubAssistant struct {
	got travel.Request
}

func (s *stubAssistant) Ask(_ context.Context, req travel.Request) (*travel.Answer, error) {
	s.got = req
	if req.Message == "fail" {
		return nil, errors.New(errors.CodeLLMError, "model unavailable", nil)
	}
	return &travel.Answer{
		RunID:       "run-1",
		Text:        "Take the train from Kyoto station.",
		Intent:      travel.IntentGeneral,
		Destination: "Kyoto",
		Sources:     []string{"https://example.org/kyoto"},
	}, nil
}

func newTestClient(t *testing.T, s *Server) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "tripgraph-test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func testDefinition(t *testing.T) *graph.Definition {
	t.Helper()
	cg, err := travel.NewGraph(travel.NewNodes(travel.Deps{LLM: &llm.MockProvider{}}))
	require.NoError(t, err)
	return graph.Describe(cg)
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func textOf(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text
}

func TestListTools(t *testing.T) {
	sink := incident.NewFileSink(filepath.Join(t.TempDir(), "incidents.json"))
	c := newTestClient(t, NewServer(&stubAssistant{}, testDefinition(t), "test", WithIncidents(sink)))

	tools, err := c.ListTools(context.Background(), mcpgo.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask", "describe_graph", "list_incidents"}, names)
}

func TestAskTool(t *testing.T) {
	stub := &stubAssistant{}
	c := newTestClient(t, NewServer(stub, testDefinition(t), "test"))

	res := callTool(t, c, "ask", map[string]any{
		"message": "How do I get to Arashiyama?",
		"run_id":  "run-1",
		"name":    "Ana",
	})
	require.False(t, res.IsError, textOf(t, res))
	var got AskResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &got))
	assert.Equal(t, "Take the train from Kyoto station.", got.Answer)
	assert.Equal(t, "Kyoto", got.Destination)
	assert.Equal(t, []string{"https://example.org/kyoto"}, got.Sources)
	assert.Equal(t, "run-1", stub.got.RunID)
	assert.Equal(t, "Ana", stub.got.Name)
}

func TestAskToolErrors(t *testing.T) {
	c := newTestClient(t, NewServer(&stubAssistant{}, testDefinition(t), "test"))

	res := callTool(t, c, "ask", map[string]any{})
	assert.True(t, res.IsError)

	res = callTool(t, c, "ask", map[string]any{"message": "fail"})
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "model unavailable")
}

func TestGraphResource(t *testing.T) {
	def := testDefinition(t)
	c := newTestClient(t, NewServer(&stubAssistant{}, def, "test"))

	req := mcpgo.ReadResourceRequest{}
	req.Params.URI = GraphURI
	res, err := c.ReadResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	text, ok := res.Contents[0].(mcpgo.TextResourceContents)
	require.True(t, ok)

	var got graph.Definition
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	assert.Equal(t, def.Entry, got.Entry)
	assert.Len(t, got.Nodes, len(def.Nodes))
}
