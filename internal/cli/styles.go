// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sermonchat/internal/ui/styles"
)

// init picks the lipgloss color profile from the terminal. NO_COLOR and
// FORCE_COLOR are honoured.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Brand)

	// LabelStyle is used for left-aligned field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.Muted).
			Width(16)

	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.Text)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Positive).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Negative).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Caution)

	// DimStyle is used for hints and secondary text.
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.Muted)

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(styles.Rule)

	// PromptStyle colours the REPL prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Brand).
			Bold(true)

	// CitationStyle is used for source lines under an answer.
	CitationStyle = lipgloss.NewStyle().
			Foreground(styles.Source)
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule. The default width is 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("─", w))
}

// RenderStatus renders a bracketed status tag.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success":
		return SuccessStyle.Render("[OK]")
	case "error", "fail", "failed":
		return ErrorStyle.Render("[FAIL]")
	case "warning", "warn":
		return WarningStyle.Render("[WARN]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a label padded to the label column.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}
