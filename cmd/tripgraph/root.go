// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigPath string
	Profile    string
	Sets       []string
	JSON       bool
	LogLevel   string
}

var global globalFlags

var rootCmd = &cobra.Command{
	Use:   "tripgraph",
	Short: "A travel assistant driven by a state graph engine",
	Long: `tripgraph answers travel questions by running a graph of nodes: classify the
query, route it by intent, fan out to itinerary, budget and risk work and
combine the results. Conversations are stored and can be continued.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err, global.JSON)
		return 1
	}
	return 0
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&global.ConfigPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&global.Profile, "profile", "", "Config profile merged over the base file (dev, prod, ...)")
	pf.StringArrayVar(&global.Sets, "set", nil, "Override a config key, e.g. --set llm.model=llama3 (repeatable)")
	pf.BoolVar(&global.JSON, "json", false, "JSON output")
	pf.StringVar(&global.LogLevel, "log-level", "", "Override log.level")

	rootCmd.AddCommand(versionCmd)
}

// configArgs renders the global flags in the form config.LoadWithCLI parses.
func (g globalFlags) configArgs() []string {
	var args []string
	if g.ConfigPath != "" {
		args = append(args, "--config", g.ConfigPath)
	}
	if g.Profile != "" {
		args = append(args, "--profile", g.Profile)
	}
	for _, kv := range g.Sets {
		args = append(args, "--set", kv)
	}
	if g.LogLevel != "" {
		args = append(args, "--set", "log.level="+g.LogLevel)
	}
	return args
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func writeRow(w io.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
