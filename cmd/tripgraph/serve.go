// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		addr      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the assistant as an MCP server",
		Long: `Serve registers the ask, describe_graph and list_incidents tools and the
tripgraph://graph resource. The stdio transport is meant to be launched by an
MCP client; sse listens on --addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				assistant, err := a.assistant(cmd.Context(), a.cfg)
				if err != nil {
					return err
				}
				sink, err := a.incidentSink()
				if err != nil {
					return err
				}
				srv := mcp.NewServer(assistant, graph.Describe(assistant.Controller().Graph()), version,
					mcp.WithIncidents(sink),
					mcp.WithLogger(a.logger),
				)
				switch strings.ToLower(transport) {
				case "stdio":
					return srv.ServeStdio()
				case "sse":
					return srv.ServeSSE(cmd.Context(), addr, "http://"+localURLHost(addr))
				default:
					return NewInvalidArgumentError("transport", fmt.Sprintf("unknown transport %q; use stdio or sse", transport))
				}
			})
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport: stdio or sse")
	cmd.Flags().StringVar(&addr, "addr", ":8088", "Listen address for the sse transport")
	return cmd
}

// localURLHost turns a listen address such as ":8088" into "localhost:8088".
func localURLHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
