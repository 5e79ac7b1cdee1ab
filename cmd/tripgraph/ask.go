// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jllopis/tripgraph/pkg/travel"
)

type askFlags struct {
	RunID       string
	UserID      string
	Name        string
	Nationality string
	Render      bool
}

type askResult struct {
	RunID       string   `json:"run_id"`
	Intent      string   `json:"intent"`
	Destination string   `json:"destination,omitempty"`
	IncidentID  string   `json:"incident_id,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	Answer      string   `json:"answer"`
}

func newAskCmd() *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask <message>...",
		Short: "Ask one travel question",
		Long: `Ask runs one turn of the assistant. Pass --run with the id printed by a
previous call to continue that conversation.`,
		Example: `  tripgraph ask "Plan 3 days in Goa on a low budget"
  tripgraph ask --run 5f0c... "Do I need a visa?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				assistant, err := a.assistant(cmd.Context(), a.cfg)
				if err != nil {
					return err
				}
				ans, err := assistant.Ask(cmd.Context(), travel.Request{
					RunID:       f.RunID,
					UserID:      f.UserID,
					Name:        f.Name,
					Nationality: f.Nationality,
					Message:     strings.Join(args, " "),
				})
				if err != nil {
					return err
				}
				return printAnswer(cmd.OutOrStdout(), ans, newRenderer(cmd.OutOrStdout(), f.Render))
			})
		},
	}
	cmd.Flags().StringVar(&f.RunID, "run", "", "Continue the conversation with this run id")
	cmd.Flags().StringVar(&f.UserID, "user", "", "User id recorded with the conversation")
	cmd.Flags().StringVar(&f.Name, "name", "", "Traveller name, used for emergency reports")
	cmd.Flags().StringVar(&f.Nationality, "nationality", "", "Traveller nationality, used for emergency reports")
	cmd.Flags().BoolVar(&f.Render, "render", true, "Render markdown answers on terminals")
	return cmd
}

func printAnswer(w io.Writer, ans *travel.Answer, r *renderer) error {
	if global.JSON {
		return printJSON(w, askResult{
			RunID:       ans.RunID,
			Intent:      string(ans.Intent),
			Destination: ans.Destination,
			IncidentID:  ans.IncidentID,
			Sources:     ans.Sources,
			Answer:      ans.Text,
		})
	}
	fmt.Fprintln(w, r.Render(ans.Text))
	if len(ans.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range uniqueStrings(ans.Sources) {
			fmt.Fprintln(w, "  "+s)
		}
	}
	if ans.IncidentID != "" {
		fmt.Fprintf(w, "\nIncident recorded: %s\n", ans.IncidentID)
	}
	fmt.Fprintf(w, "\nrun: %s (intent: %s)\n", ans.RunID, normalizeCell(string(ans.Intent)))
	return nil
}

func uniqueStrings(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func init() {
	rootCmd.AddCommand(newAskCmd())
}
