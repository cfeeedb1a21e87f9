// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/util"
)

const streamingCursor = "▌"

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.cfg.Theme.Rule(m.width))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

// =============================================================================
// HEADER, STATUS, HELP
// =============================================================================

func (m Model) renderHeader() string {
	t := m.cfg.Theme
	left := t.Header.Render(m.cfg.Title)

	var right string
	if m.snap.ConversationID != nil {
		right = "conversation #" + strconv.FormatInt(*m.snap.ConversationID, 10)
	} else {
		right = "new conversation"
	}
	right = t.HeaderMuted.Render(" " + right + " ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return util.TruncateWidth(left+right, m.width)
	}
	return left + t.HeaderMuted.Render(strings.Repeat(" ", gap)) + right
}

func (m Model) renderStatus() string {
	t := m.cfg.Theme
	switch {
	case m.errText != "":
		return t.StatusErr.Render(util.TruncateWidth("Error: "+m.errText, m.width))
	case m.turning && m.snap.State == session.StateSending:
		return m.spinner.View() + t.Status.Render(" Searching sermons...")
	case m.turning:
		return m.spinner.View() + t.Status.Render(" Answering... (Esc to stop)")
	case m.status != "":
		return t.Status.Render(m.status)
	}
	return t.Status.Render(fmt.Sprintf("%d messages", len(m.snap.Messages)))
}

func (m Model) renderHelp() string {
	var parts []string
	for _, k := range m.keys.ShortHelp() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.cfg.Theme.Help.Render(util.TruncateWidth(strings.Join(parts, " • "), m.width))
}

// =============================================================================
// MESSAGES
// =============================================================================

// contentWidth is the width messages wrap at.
func (m Model) contentWidth() int {
	w := m.width - 2
	if m.cfg.WordWrap > 0 && m.cfg.WordWrap < w {
		w = m.cfg.WordWrap
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) renderMessages() string {
	if len(m.snap.Messages) == 0 {
		return m.cfg.Theme.Help.Render("Ask a question about the sermon archive to begin.")
	}

	width := m.contentWidth()
	blocks := make([]string, 0, len(m.snap.Messages))
	for i := range m.snap.Messages {
		blocks = append(blocks, m.renderMessage(&m.snap.Messages[i], width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg *model.Message, width int) string {
	t := m.cfg.Theme
	var b strings.Builder

	stamp := t.Help.Render(" " + msg.Timestamp.Local().Format("15:04"))
	switch msg.Role {
	case model.RoleUser:
		b.WriteString(t.UserLabel.Render(msg.Role.DisplayName()) + stamp + "\n")
		b.WriteString(t.UserText.Render(PlainRenderer(msg.Content, width)))
		return b.String()
	default:
		b.WriteString(t.AssistantLabel.Render(msg.Role.DisplayName()) + stamp + "\n")
	}

	switch {
	case msg.IsStreaming:
		b.WriteString(t.AssistantText.Render(PlainRenderer(msg.Content, width)))
		b.WriteString(t.Cursor.Render(streamingCursor))
	case strings.HasPrefix(msg.Content, session.ErrorPrefix):
		b.WriteString(t.ErrorText.Render(PlainRenderer(msg.Content, width)))
	default:
		b.WriteString(m.renderMarkdown(msg, width))
	}

	if m.cfg.ShowCitations && msg.HasCitations() && !msg.IsStreaming {
		b.WriteString("\n")
		b.WriteString(t.CitationHeader.Render("Sources"))
		for i, c := range msg.Citations {
			line := fmt.Sprintf("  %d. %s", i+1, c.Label())
			b.WriteString("\n" + t.Citation.Render(util.TruncateWidth(line, width)))
		}
	}

	if msg.Feedback != nil {
		style := t.FeedbackGood
		if !msg.Feedback.IsPositive {
			style = t.FeedbackBad
		}
		b.WriteString("\n" + style.Render("rated "+msg.Feedback.Symbol()))
	}
	return b.String()
}

// renderMarkdown renders a finished answer, caching by message and width.
func (m Model) renderMarkdown(msg *model.Message, width int) string {
	key := msg.ID + ":" + strconv.Itoa(width) + ":" + strconv.Itoa(len(msg.Content))
	if out, ok := m.renderCache[key]; ok {
		return out
	}
	out := m.cfg.Renderer(msg.Content, width)
	m.renderCache[key] = out
	return out
}
