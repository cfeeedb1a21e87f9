// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat view over a session controller.

The view never mutates conversation state itself. It submits questions,
cancels and resets through the controller, and renders the snapshots the
controller publishes.

# Key Components

## Model (model.go)

The Model owns the input line, the message viewport and the spinner, and
holds the latest session snapshot.

## Update Loop (update.go)

Turns run in a tea.Cmd that blocks in Submit. While a turn is in flight a
30fps tick pulls the newest snapshot from the buffer; the turn's completion
message triggers a final refresh.

## Streaming (streaming.go)

snapshotBuffer keeps only the newest snapshot so a fast stream costs one
render per frame, not one per token.

## View Rendering (view.go)

Header, message list with citations and feedback markers, status line,
input and key help. Finished answers are rendered as Markdown with glamour.

# Key Bindings

  - Enter: submit the question
  - Esc: cancel the answer in progress
  - Ctrl+N: start a new conversation
  - PgUp/PgDn: scroll
  - Ctrl+C: quit

# Usage

	m := chat.New(chat.Config{
		Session:  ctrl,
		Theme:    styles.NewTheme(cfg.UI.Theme),
		Renderer: chat.NewMarkdownRenderer(theme.GlamourStyle()),
	})
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
