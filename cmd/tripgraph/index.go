// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jllopis/tripgraph/pkg/errors"
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Add travel guides to the vector knowledge base",
	Long: `Chunks each file, embeds the chunks with the configured embedder and
stores them in the Qdrant collection used by search.provider=vector.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			index, err := a.vectorIndex(cmd.Context(), a.cfg.Search)
			if err != nil {
				return err
			}
			total := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return errors.New(errors.CodeNotFound, "read document", err).WithContext("path", path)
				}
				n, err := index.AddDocument(cmd.Context(), filepath.Base(path), string(data))
				if err != nil {
					return err
				}
				a.logger.Info("document indexed", "path", path, "chunks", n)
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %d files into '%s'\n", total, len(args), a.cfg.Search.Collection)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
