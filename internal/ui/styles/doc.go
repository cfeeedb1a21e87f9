// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the colour palette and lipgloss styles of the chat
// TUI.
//
// # Key Types
//
//   - Theme: every style the chat view renders with
//
// # Usage
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	label := theme.AssistantLabel.Render("Assistant")
package styles
