// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Inspect emergency reports",
}

var incidentsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded incidents, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			sink, err := a.incidentSink()
			if err != nil {
				return err
			}
			entries, err := sink.List(cmd.Context())
			if err != nil {
				return err
			}
			if global.JSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No incidents recorded.")
				return nil
			}
			tw := newTabWriter(cmd.OutOrStdout())
			writeRow(tw, "ID", "TIME", "STATUS", "TRAVELLER", "LOCATION", "MESSAGE")
			for _, e := range entries {
				writeRow(tw, e.ID, formatTime(e.Timestamp), e.Status, e.Name, e.IncidentLocation, truncateMessage(e.OriginalMessage, 50))
			}
			return tw.Flush()
		})
	},
}

func init() {
	incidentsCmd.AddCommand(incidentsLsCmd)
	rootCmd.AddCommand(incidentsCmd)
}
