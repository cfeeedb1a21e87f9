// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/ui/chat"
	"github.com/jeranaias/sermonchat/internal/ui/styles"
	"github.com/jeranaias/sermonchat/internal/util"
)

// =============================================================================
// STREAMED ANSWERS
// =============================================================================

// answerPrinter writes the growing answer of the current turn as it
// arrives. It is fed by session.Controller.Subscribe and so runs on the turn
// goroutine.
type answerPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	msgID   string
	printed string
}

func newAnswerPrinter(w io.Writer) *answerPrinter {
	return &answerPrinter{w: w}
}

// Observe prints whatever the last assistant message gained since the
// previous snapshot. Content that no longer extends what was printed (the
// error text of a failed turn) is left for the caller to report.
func (p *answerPrinter) Observe(snap session.Snapshot) {
	msg, ok := snap.LastAssistant()
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.ID != p.msgID {
		p.msgID = msg.ID
		p.printed = ""
	}
	if !strings.HasPrefix(msg.Content, p.printed) {
		return
	}
	if delta := msg.Content[len(p.printed):]; delta != "" {
		fmt.Fprint(p.w, delta)
		p.printed = msg.Content
	}
}

// Printed returns the answer text written so far.
func (p *answerPrinter) Printed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

// =============================================================================
// FINISHED ANSWERS
// =============================================================================

// newRenderer returns the Markdown renderer for the configured theme.
func newRenderer(theme string) chat.MarkdownRenderer {
	if !ColorsEnabled() {
		return chat.NewMarkdownRenderer("notty")
	}
	return chat.NewMarkdownRenderer(styles.NewTheme(theme).GlamourStyle())
}

// writeCitations lists the sources of an answer.
func writeCitations(w io.Writer, citations []model.SourceCitation, width int) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(w, TitleStyle.Render("Sources"))
	for i, c := range citations {
		line := fmt.Sprintf("  %d. %s", i+1, c.Label())
		fmt.Fprintln(w, CitationStyle.Render(util.TruncateWidth(line, width)))
	}
}

// writeMessage prints one message of a conversation.
func writeMessage(w io.Writer, msg model.Message, render chat.MarkdownRenderer, width int, showCitations bool) {
	label := TitleStyle.Render(msg.Role.DisplayName())
	if !msg.Timestamp.IsZero() {
		label += DimStyle.Render(" " + msg.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	if msg.ServerMessageID != nil {
		label += DimStyle.Render(fmt.Sprintf(" #%d", *msg.ServerMessageID))
	}
	fmt.Fprintln(w, label)

	if msg.Role == model.RoleAssistant && render != nil {
		fmt.Fprintln(w, render(msg.Content, width))
	} else {
		fmt.Fprintln(w, msg.Content)
	}
	if showCitations && msg.HasCitations() {
		writeCitations(w, msg.Citations, width)
	}
	if msg.Feedback != nil {
		fmt.Fprintln(w, DimStyle.Render("rated "+msg.Feedback.Symbol()))
	}
}

// answerJSON is the --json shape of one answered question.
type answerJSON struct {
	ConversationID *int64                 `json:"conversation_id"`
	MessageID      *int64                 `json:"message_id"`
	Answer         string                 `json:"answer"`
	Citations      []model.SourceCitation `json:"citations"`
	Cancelled      bool                   `json:"cancelled,omitempty"`
}

func newAnswerJSON(snap session.Snapshot, cancelled bool) answerJSON {
	out := answerJSON{ConversationID: snap.ConversationID, Cancelled: cancelled}
	if msg, ok := snap.LastAssistant(); ok {
		out.MessageID = msg.ServerMessageID
		out.Answer = msg.Content
		out.Citations = msg.Citations
	}
	if out.Citations == nil {
		out.Citations = []model.SourceCitation{}
	}
	return out
}
