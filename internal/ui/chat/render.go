// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// MarkdownRenderer renders a finished answer into at most width cells.
type MarkdownRenderer func(markdown string, width int) string

// NewMarkdownRenderer returns a glamour renderer for the given standard style
// ("dark", "light", "notty"). One term renderer is kept per width.
func NewMarkdownRenderer(style string) MarkdownRenderer {
	var (
		mu    sync.Mutex
		cache = make(map[int]*glamour.TermRenderer)
	)
	return func(md string, width int) string {
		if width < 20 {
			width = 20
		}
		mu.Lock()
		defer mu.Unlock()

		r, ok := cache[width]
		if !ok {
			var err error
			r, err = glamour.NewTermRenderer(
				glamour.WithStandardStyle(style),
				glamour.WithWordWrap(width),
			)
			if err != nil {
				return PlainRenderer(md, width)
			}
			cache[width] = r
		}
		out, err := r.Render(md)
		if err != nil {
			return PlainRenderer(md, width)
		}
		return strings.Trim(out, "\n")
	}
}

// PlainRenderer word-wraps text without interpreting Markdown.
func PlainRenderer(text string, width int) string {
	if width < 1 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
