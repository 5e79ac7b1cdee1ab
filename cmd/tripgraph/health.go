// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/tripgraph/pkg/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the configured run store, incident log and vector search",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			if _, err := a.runStore(); err != nil {
				return err
			}
			if _, err := a.incidentSink(); err != nil {
				return err
			}
			if strings.EqualFold(a.cfg.Search.Provider, "vector") {
				if _, err := a.vectorIndex(cmd.Context(), a.cfg.Search); err != nil {
					a.logger.Warn("health.vector.unavailable", "error", err.Error())
				}
			}
			report := a.health.CheckAll(cmd.Context())
			if global.JSON {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				tw := newTabWriter(cmd.OutOrStdout())
				writeRow(tw, "COMPONENT", "STATUS", "LATENCY", "MESSAGE")
				for _, res := range report.Results {
					writeRow(tw, res.Component, string(res.Status), res.Latency.String(), truncateMessage(res.Message, 60))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nOverall: %s\n", report.Status)
			}
			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("one or more components are unhealthy")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
