// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sermonchat/internal/session"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTickMsg:
		if snap, ok := m.buffer.Take(); ok {
			m.apply(snap)
		}
		if m.turning {
			return m, streamTickCmd()
		}
		return m, nil

	case TurnDoneMsg:
		return m.handleTurnDone(msg)

	case spinner.TickMsg:
		if !m.turning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.turning {
			m.cfg.Session.Cancel()
			m.cancelled = true
			m.status = "Stopping..."
		}
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.cfg.Session.Reset()
		m.buffer.Take()
		m.apply(m.cfg.Session.Snapshot())
		m.errText = ""
		m.status = "New conversation"
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		if m.turning {
			m.status = "Still answering; Esc stops it"
			return m, nil
		}
		m.input.Reset()
		m.turning = true
		m.cancelled = false
		m.errText = ""
		m.status = ""
		return m, tea.Batch(m.submitCmd(question), streamTickCmd(), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// TURN COMPLETION
// =============================================================================

func (m Model) handleTurnDone(msg TurnDoneMsg) (tea.Model, tea.Cmd) {
	m.turning = false
	m.turn.end()
	m.buffer.Take()
	m.apply(m.cfg.Session.Snapshot())

	var turnErr *session.TurnError
	switch {
	case errors.Is(msg.Err, session.ErrBusy):
		m.status = "Still answering; Esc stops it"
		return m, nil
	case errors.Is(msg.Err, session.ErrEmptyQuestion):
		return m, nil
	case errors.As(msg.Err, &turnErr):
		m.errText = turnErr.Err.Error()
	case msg.Err != nil:
		m.errText = msg.Err.Error()
	case m.cancelled:
		m.status = "Stopped"
	default:
		m.status = ""
	}
	m.cancelled = false

	if m.cfg.OnTurnEnd != nil {
		m.cfg.OnTurnEnd(m.snap)
	}
	return m, nil
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	vh := height - headerHeight - footerHeight
	if vh < minViewport {
		vh = minViewport
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.input.Width = width - 4
}

// apply stores snap and re-renders the message list if it changed.
func (m *Model) apply(snap session.Snapshot) {
	if snap.Version == m.snap.Version && len(snap.Messages) == len(m.snap.Messages) {
		return
	}
	m.snap = snap
	m.refresh()
}

// refresh rebuilds the viewport content, keeping the view pinned to the
// bottom if it was there.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
