// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jllopis/tripgraph/pkg/travel"
)

func newEvalCmd() *cobra.Command {
	var (
		useJudge    bool
		concurrency int
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "eval <cases.json>",
		Short: "Run labelled cases through the assistant and score the answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := travel.LoadCases(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				assistant, err := a.assistant(cmd.Context(), a.cfg)
				if err != nil {
					return err
				}
				opts := []travel.EvalOption{travel.WithEvalConcurrency(concurrency)}
				if useJudge {
					p, err := a.provider(a.cfg.LLM)
					if err != nil {
						return err
					}
					opts = append(opts, travel.WithJudge(p))
				}
				report, err := travel.Evaluate(cmd.Context(), assistant, cases, opts...)
				if err != nil {
					return err
				}
				if global.JSON {
					return printJSON(cmd.OutOrStdout(), report)
				}
				return printReport(cmd.OutOrStdout(), report, verbose)
			})
		},
	}
	cmd.Flags().BoolVar(&useJudge, "judge", false, "Score answer quality with the configured LLM")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Cases evaluated in parallel")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every case")
	return cmd
}

func printReport(w io.Writer, r *travel.Report, verbose bool) error {
	if verbose {
		tw := newTabWriter(w)
		writeRow(tw, "PASS", "SAFE", "INTENT", "QUALITY", "INPUT")
		for _, res := range r.Results {
			quality := "-"
			if res.Quality > 0 {
				quality = strconv.Itoa(res.Quality)
			}
			writeRow(tw, strconv.FormatBool(res.Passed), strconv.FormatBool(res.Safe), string(res.Intent), quality, truncateMessage(res.Case.Input, 60))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Cases:           %d (%d errors)\n", len(r.Results), r.Errors)
	fmt.Fprintf(w, "Accuracy:        %.2f\n", r.Accuracy())
	fmt.Fprintf(w, "Precision:       %.2f\n", r.Precision())
	fmt.Fprintf(w, "Recall:          %.2f\n", r.Recall())
	fmt.Fprintf(w, "F1:              %.2f\n", r.F1())
	fmt.Fprintf(w, "Confusion:       TP=%d TN=%d FP=%d FN=%d\n", r.TP, r.TN, r.FP, r.FN)
	fmt.Fprintf(w, "Safety failures: %d\n", r.SafetyFailures)
	if q := r.AverageQuality(); q > 0 {
		fmt.Fprintf(w, "Avg quality:     %.2f / 5\n", q)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newEvalCmd())
}
