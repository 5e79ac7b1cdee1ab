// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/llm"
	"github.com/jllopis/tripgraph/pkg/travel"
)

type graphResult struct {
	Format   string `json:"format"`
	Content  string `json:"content"`
	GraphID  string `json:"graph_id,omitempty"`
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	Branches int    `json:"branches"`
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect and validate assistant topologies",
}

func newGraphShowCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show [definition]",
		Short: "Print the assistant graph as mermaid, dot, yaml or json",
		Long: `Show prints the built-in assistant topology, or the given definition file
after checking that it compiles.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cg, err := compileForInspection(args)
			if err != nil {
				return err
			}
			def := graph.Describe(cg)
			result := graphResult{
				Format:   output,
				GraphID:  def.ID,
				Nodes:    len(def.Nodes),
				Edges:    len(def.Edges),
				Branches: len(def.Branches),
			}
			switch output {
			case "mermaid":
				result.Content = toMermaid(def)
			case "dot":
				result.Content = toDot(def)
			case "yaml":
				data, err := yaml.Marshal(def)
				if err != nil {
					return err
				}
				result.Content = string(data)
			case "json":
				data, err := json.MarshalIndent(def, "", "  ")
				if err != nil {
					return err
				}
				result.Content = string(data)
			default:
				return NewInvalidArgumentError("output", fmt.Sprintf("unknown format %q; use mermaid, dot, yaml or json", output))
			}
			if global.JSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(result.Content, "\n"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "mermaid", "Output format: mermaid, dot, yaml, json")
	return cmd
}

func newGraphValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition>...",
		Short: "Check that definition files compile against the assistant nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if _, err := compileForInspection([]string{path}); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n", path)
					printError(cmd.OutOrStdout(), err, false)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d definitions are invalid", failed, len(args))
			}
			return nil
		},
	}
}

// compileForInspection compiles a topology without any live backend; the
// nodes are never run.
func compileForInspection(args []string) (*graph.CompiledGraph, error) {
	nodes := travel.NewNodes(travel.Deps{LLM: &llm.MockProvider{}})
	if len(args) == 0 {
		return travel.NewGraph(nodes)
	}
	def, err := graph.LoadDefinition(args[0])
	if err != nil {
		return nil, err
	}
	return travel.CompileDefinition(def, nodes)
}

func toMermaid(d *graph.Definition) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, n := range d.Nodes {
		fmt.Fprintf(&sb, "    %s[%s]\n", n.ID, n.ID)
	}
	sb.WriteString("    __end__([END])\n")
	for _, e := range d.Edges {
		fmt.Fprintf(&sb, "    %s --> %s\n", e.From, e.To)
	}
	for _, b := range d.Branches {
		for _, key := range sortedRouteKeys(b.Routes) {
			fmt.Fprintf(&sb, "    %s -.->|%s| %s\n", b.From, key, b.Routes[key])
		}
	}
	if d.Entry != "" {
		fmt.Fprintf(&sb, "    style %s fill:#90EE90\n", d.Entry)
	}
	return sb.String()
}

func toDot(d *graph.Definition) string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n")
	for _, n := range d.Nodes {
		label := n.ID
		if n.Timeout != "" {
			label = fmt.Sprintf("%s\\n(timeout %s)", n.ID, n.Timeout)
		}
		attrs := fmt.Sprintf("label=\"%s\"", label)
		if n.ID == d.Entry {
			attrs += ", style=\"rounded,filled\", fillcolor=\"#90EE90\""
		}
		fmt.Fprintf(&sb, "    %q [%s];\n", n.ID, attrs)
	}
	fmt.Fprintf(&sb, "    %q [label=\"END\", shape=doublecircle];\n", graph.END)
	for _, e := range d.Edges {
		fmt.Fprintf(&sb, "    %q -> %q;\n", e.From, e.To)
	}
	for _, b := range d.Branches {
		for _, key := range sortedRouteKeys(b.Routes) {
			fmt.Fprintf(&sb, "    %q -> %q [label=%q, style=dashed];\n", b.From, b.Routes[key], key)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func sortedRouteKeys(routes map[string]string) []string {
	keys := make([]string, 0, len(routes))
	for k := range routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	graphCmd.AddCommand(newGraphShowCmd(), newGraphValidateCmd())
	rootCmd.AddCommand(graphCmd)
}
