// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the travel assistant as a Model Context Protocol
// server so other agents can ask it questions.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/incident"
	"github.com/jllopis/tripgraph/pkg/travel"
)

// GraphURI is the resource holding the topology of the served graph.
const GraphURI = "tripgraph://graph"

// Assistant is the part of travel.Assistant the server needs.
type Assistant interface {
	Ask(ctx context.Context, req travel.Request) (*travel.Answer, error)
}

// AskResult is the structured result of the ask tool.
type AskResult struct {
	RunID       string   `json:"run_id"`
	Answer      string   `json:"answer"`
	Intent      string   `json:"intent,omitempty"`
	Destination string   `json:"destination,omitempty"`
	IncidentID  string   `json:"incident_id,omitempty"`
	Sources     []string `json:"sources,omitempty"`
}

// Server serves one assistant over MCP.
type Server struct {
	assistant Assistant
	def       *graph.Definition
	incidents incident.Sink
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithIncidents adds the list_incidents tool.
func WithIncidents(sink incident.Sink) Option {
	return func(s *Server) {
		s.incidents = sink
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer registers the tools and the graph resource.
func NewServer(a Assistant, def *graph.Definition, version string, opts ...Option) *Server {
	s := &Server{
		assistant: a,
		def:       def,
		logger:    slog.Default(),
		mcpServer: server.NewMCPServer("tripgraph", version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin and stdout until the input is closed.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over HTTP with server-sent events until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))
	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("mcp.server.start", slog.String("addr", addr))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcp server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Ask the travel assistant a question. Pass run_id to continue a conversation."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The traveller's message")),
		mcp.WithString("run_id", mcp.Description("Conversation to continue (optional)")),
		mcp.WithString("user_id", mcp.Description("Traveller id, logged with emergencies")),
		mcp.WithString("name", mcp.Description("Traveller name")),
		mcp.WithString("nationality", mcp.Description("Traveller nationality")),
	), s.handleAsk)

	s.mcpServer.AddTool(mcp.NewTool("describe_graph",
		mcp.WithDescription("Return the node and edge layout of the assistant graph."),
	), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.def)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	if s.incidents != nil {
		s.mcpServer.AddTool(mcp.NewTool("list_incidents",
			mcp.WithDescription("List logged emergency incidents, oldest first."),
		), s.handleListIncidents)
	}
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ans, err := s.assistant.Ask(ctx, travel.Request{
		RunID:       request.GetString("run_id", ""),
		UserID:      request.GetString("user_id", ""),
		Name:        request.GetString("name", ""),
		Nationality: request.GetString("nationality", ""),
		Message:     message,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "mcp.ask.failed",
			slog.String("code", string(errors.CodeOf(err))),
			slog.String("error", err.Error()))
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := AskResult{
		RunID:       ans.RunID,
		Answer:      ans.Text,
		Intent:      string(ans.Intent),
		Destination: ans.Destination,
		IncidentID:  ans.IncidentID,
		Sources:     ans.Sources,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultStructured(result, string(data)), nil
}

func (s *Server) handleListIncidents(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.incidents.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Assistant graph definition",
		mcp.WithMIMEType("application/json"),
	), func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.def)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: GraphURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
