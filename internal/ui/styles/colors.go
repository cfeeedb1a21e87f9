// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// The palette is warm (parchment and ink) and every colour is adaptive, so
// the chat reads the same on light and dark terminals.

// =============================================================================
// ROLE COLORS
// =============================================================================

var (
	// Brand marks the header and the user's questions.
	Brand = lipgloss.AdaptiveColor{Light: "#9A3412", Dark: "#FDBA74"}

	// Answer marks assistant messages and the streaming cursor.
	Answer = lipgloss.AdaptiveColor{Light: "#1E40AF", Dark: "#93C5FD"}

	// Source marks citation lines.
	Source = lipgloss.AdaptiveColor{Light: "#78716C", Dark: "#A8A29E"}
)

// =============================================================================
// STATUS COLORS
// =============================================================================

var (
	Positive = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#86EFAC"}
	Negative = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"}
	Caution  = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"}
)

// =============================================================================
// SURFACES AND TEXT
// =============================================================================

var (
	// Surface is the header and status bar background.
	Surface = lipgloss.AdaptiveColor{Light: "#F5F0E6", Dark: "#1C1917"}

	// Rule draws borders and separators.
	Rule = lipgloss.AdaptiveColor{Light: "#E7E0D2", Dark: "#3F3A36"}

	Text  = lipgloss.AdaptiveColor{Light: "#292524", Dark: "#E7E5E4"}
	Label = lipgloss.AdaptiveColor{Light: "#57534E", Dark: "#D6D3D1"}
	Muted = lipgloss.AdaptiveColor{Light: "#A8A29E", Dark: "#78716C"}
)
