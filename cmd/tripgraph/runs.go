// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/tripgraph/pkg/graph"
	"github.com/jllopis/tripgraph/pkg/run/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored conversations",
	Long:  `List, inspect and remove runs kept by the configured store.`,
}

type runSummary struct {
	RunID      string       `json:"run_id"`
	GraphID    string       `json:"graph_id"`
	Status     store.Status `json:"status"`
	Turns      int          `json:"turns"`
	Supersteps int          `json:"supersteps"`
	UpdatedAt  string       `json:"updated_at"`
	Error      string       `json:"error,omitempty"`
}

func summarize(rec *store.Record) runSummary {
	return runSummary{
		RunID:      rec.RunID,
		GraphID:    rec.GraphID,
		Status:     rec.Status,
		Turns:      rec.Turns,
		Supersteps: rec.Supersteps,
		UpdatedAt:  formatTime(rec.UpdatedAt),
		Error:      rec.Error,
	}
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.runStore()
			if err != nil {
				return err
			}
			ids, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]runSummary, 0, len(ids))
			for _, id := range ids {
				rec, err := s.Load(cmd.Context(), id)
				if store.IsNotFound(err) {
					continue
				}
				if err != nil {
					return err
				}
				out = append(out, summarize(rec))
			}
			if global.JSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			if len(out) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored runs found.")
				return nil
			}
			tw := newTabWriter(cmd.OutOrStdout())
			writeRow(tw, "RUN", "STATUS", "TURNS", "UPDATED", "ERROR")
			for _, r := range out {
				writeRow(tw, r.RunID, string(r.Status), strconv.Itoa(r.Turns), r.UpdatedAt, truncateMessage(r.Error, 60))
			}
			return tw.Flush()
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the stored state of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.runStore()
			if err != nil {
				return err
			}
			rec, err := s.Load(cmd.Context(), args[0])
			if store.IsNotFound(err) {
				return NewNotFoundError("run", args[0])
			}
			if err != nil {
				return err
			}
			var state map[string]any
			if err := json.Unmarshal(rec.State, &state); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				runSummary
				State map[string]any `json:"state"`
			}{summarize(rec), state})
		})
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			s, err := a.runStore()
			if err != nil {
				return err
			}
			audit, err := a.auditStore()
			if err != nil {
				return err
			}
			failed := 0
			for _, id := range args {
				if err := s.Delete(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
					failed++
					continue
				}
				if audit != nil {
					if n, err := audit.Purge(cmd.Context(), id); err != nil {
						a.logger.Warn("runs.audit.purge_failed", slog.String("run_id", id), slog.String("error", err.Error()))
					} else if n > 0 {
						a.logger.Debug("runs.audit.purged", slog.String("run_id", id), slog.Int("events", n))
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed run '%s'\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d runs could not be removed", failed)
			}
			return nil
		})
	},
}

var auditFlags struct {
	node   string
	status string
}

var runsAuditCmd = &cobra.Command{
	Use:   "audit <run-id>",
	Short: "Print the node events of a run (requires store.audit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := graph.AuditFilter{RunID: args[0], NodeID: auditFlags.node}
		if auditFlags.status != "" {
			status := graph.NodeStatus(strings.ToLower(auditFlags.status))
			if !status.Valid() {
				return NewInvalidArgumentError("status", fmt.Sprintf("unknown node status %q", auditFlags.status))
			}
			filter.Status = status
		}
		return withApp(cmd.Context(), func(a *app) error {
			audit, err := a.auditStore()
			if err != nil {
				return err
			}
			if audit == nil {
				return NewInvalidArgumentError("store.audit", "auditing is disabled; set store.audit=true")
			}
			events, err := audit.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if global.JSON {
				return printJSON(cmd.OutOrStdout(), events)
			}
			tw := newTabWriter(cmd.OutOrStdout())
			writeRow(tw, "STEP", "NODE", "STATUS", "STARTED", "ERROR")
			for _, ev := range events {
				writeRow(tw, strconv.Itoa(ev.Superstep), ev.NodeID, string(ev.Status), formatTime(ev.StartedAt), truncateMessage(ev.Error, 60))
			}
			return tw.Flush()
		})
	},
}

func init() {
	runsAuditCmd.Flags().StringVar(&auditFlags.node, "node", "", "Only show events of this node")
	runsAuditCmd.Flags().StringVar(&auditFlags.status, "status", "", "Only show events with this status (started, completed, soft_failed, failed)")
	runsCmd.AddCommand(runsLsCmd, runsShowCmd, runsRmCmd, runsAuditCmd)
	rootCmd.AddCommand(runsCmd)
}
