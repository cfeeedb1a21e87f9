// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds every style the chat view uses.
type Theme struct {
	Mode string

	Header      lipgloss.Style
	HeaderMuted lipgloss.Style

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantText  lipgloss.Style
	ErrorText      lipgloss.Style

	CitationHeader lipgloss.Style
	Citation       lipgloss.Style
	FeedbackGood   lipgloss.Style
	FeedbackBad    lipgloss.Style

	Status    lipgloss.Style
	StatusErr lipgloss.Style
	Spinner   lipgloss.Style
	Prompt    lipgloss.Style
	Help      lipgloss.Style
	Separator lipgloss.Style
	Cursor    lipgloss.Style
}

// NewTheme builds a theme. "dark" and "light" pin the background for
// adaptive colours; anything else lets lipgloss detect it.
func NewTheme(mode string) *Theme {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case ModeDark:
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		lipgloss.SetHasDarkBackground(false)
	default:
		mode = ModeAuto
	}

	t := &Theme{Mode: mode}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Brand).
		Background(Surface).
		Padding(0, 1)
	t.HeaderMuted = lipgloss.NewStyle().
		Foreground(Muted).
		Background(Surface)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Brand)
	t.UserText = lipgloss.NewStyle().Foreground(Text)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Answer)
	t.AssistantText = lipgloss.NewStyle().Foreground(Text)
	t.ErrorText = lipgloss.NewStyle().Foreground(Negative)

	t.CitationHeader = lipgloss.NewStyle().Foreground(Label).Italic(true)
	t.Citation = lipgloss.NewStyle().Foreground(Source)
	t.FeedbackGood = lipgloss.NewStyle().Foreground(Positive)
	t.FeedbackBad = lipgloss.NewStyle().Foreground(Negative)

	t.Status = lipgloss.NewStyle().Foreground(Label)
	t.StatusErr = lipgloss.NewStyle().Foreground(Negative).Bold(true)
	t.Spinner = lipgloss.NewStyle().Foreground(Answer)
	t.Prompt = lipgloss.NewStyle().Foreground(Brand).Bold(true)
	t.Help = lipgloss.NewStyle().Foreground(Muted)
	t.Separator = lipgloss.NewStyle().Foreground(Rule)
	t.Cursor = lipgloss.NewStyle().Foreground(Answer)
}

// GlamourStyle returns the glamour standard style matching the mode.
func (t *Theme) GlamourStyle() string {
	switch t.Mode {
	case ModeLight:
		return "light"
	case ModeDark:
		return "dark"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// Rule renders a horizontal rule of width cells.
func (t *Theme) Rule(width int) string {
	if width < 1 {
		width = 1
	}
	return t.Separator.Render(strings.Repeat("─", width))
}
