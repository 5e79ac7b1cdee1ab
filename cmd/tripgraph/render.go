// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// renderer formats assistant answers. Markdown is rendered only when
// writing to a terminal.
type renderer struct {
	md *glamour.TermRenderer
}

func newRenderer(w io.Writer, enabled bool) *renderer {
	if !enabled {
		return &renderer{}
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return &renderer{}
	}
	md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return &renderer{}
	}
	return &renderer{md: md}
}

func (r *renderer) Render(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
