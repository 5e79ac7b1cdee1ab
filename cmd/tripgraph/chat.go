// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/jllopis/tripgraph/pkg/config"
	"github.com/jllopis/tripgraph/pkg/travel"
)

func newChatCmd() *cobra.Command {
	var f askFlags
	var watch bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Chat reads one message per line and keeps every turn in the same run.
Type /new to start a fresh conversation and /exit (or Ctrl-D) to leave.
With --watch the config file is polled and the assistant is rebuilt after
every change; --set overrides apply to the first load only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				ctx := cmd.Context()
				var (
					w       *config.Watcher
					changed atomic.Bool
				)
				if watch && global.ConfigPath != "" {
					var err error
					w, err = config.NewWatcher(global.ConfigPath,
						config.WithWatchProfile(global.Profile),
						config.WithWatchLogger(a.logger))
					if err != nil {
						return NewConfigError(err, global.ConfigPath)
					}
					w.OnChange(func(*config.Config) { changed.Store(true) })
					w.Start(ctx)
					defer w.Stop()
				}

				assistant, err := a.assistant(ctx, a.cfg)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				r := newRenderer(out, f.Render)
				runID := f.RunID

				fmt.Fprintln(out, "tripgraph chat. /new starts over, /exit quits.")
				in := bufio.NewScanner(cmd.InOrStdin())
				for {
					fmt.Fprint(out, "> ")
					if !in.Scan() {
						fmt.Fprintln(out)
						return in.Err()
					}
					line := strings.TrimSpace(in.Text())
					switch line {
					case "":
						continue
					case "/exit", "/quit":
						return nil
					case "/new":
						runID = ""
						fmt.Fprintln(out, "started a new conversation")
						continue
					}

					if changed.Swap(false) {
						cfg := w.Config()
						if next, err := a.assistant(ctx, cfg); err != nil {
							a.logger.Error("chat.reload.failed", slog.String("error", err.Error()))
						} else {
							assistant = next
							a.logger.Info("chat.reload.applied", slog.String("model", cfg.LLM.Model))
						}
					}

					ans, err := assistant.Ask(ctx, travel.Request{
						RunID:       runID,
						UserID:      f.UserID,
						Name:        f.Name,
						Nationality: f.Nationality,
						Message:     line,
					})
					if err != nil {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						printError(cmd.ErrOrStderr(), err, false)
						continue
					}
					runID = ans.RunID
					fmt.Fprintln(out, r.Render(ans.Text))
					if ans.IncidentID != "" {
						fmt.Fprintf(out, "\nIncident recorded: %s\n", ans.IncidentID)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&f.RunID, "run", "", "Continue the conversation with this run id")
	cmd.Flags().StringVar(&f.UserID, "user", "", "User id recorded with the conversation")
	cmd.Flags().StringVar(&f.Name, "name", "", "Traveller name, used for emergency reports")
	cmd.Flags().StringVar(&f.Nationality, "nationality", "", "Traveller nationality, used for emergency reports")
	cmd.Flags().BoolVar(&f.Render, "render", true, "Render markdown answers on terminals")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the assistant when the config file changes")
	return cmd
}

func init() {
	rootCmd.AddCommand(newChatCmd())
}
