// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MaxTitleRunes is how much of the first question becomes a conversation title.
const MaxTitleRunes = 80

// =============================================================================
// HISTORY RECORDS
// =============================================================================

// ConversationSummary is one entry of the remote conversation list.
type ConversationSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryMessage is a persisted message as returned by the history service.
type HistoryMessage struct {
	ID        int64            `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Citations []SourceCitation `json:"citations,omitempty"`
	Language  string           `json:"language,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Feedback  *Feedback        `json:"feedback,omitempty"`
}

// ConversationDetail is a conversation with its full message list.
type ConversationDetail struct {
	ConversationSummary
	Messages []HistoryMessage `json:"messages"`
}

// MessagesFromHistory converts persisted records into session messages.
// The server id doubles as the local id since both are stable.
func MessagesFromHistory(detail ConversationDetail) []Message {
	out := make([]Message, 0, len(detail.Messages))
	for _, hm := range detail.Messages {
		id := hm.ID
		msg := Message{
			ID:              strconv.FormatInt(hm.ID, 10),
			Role:            hm.Role,
			Timestamp:       hm.CreatedAt,
			Content:         hm.Content,
			Citations:       CloneCitations(hm.Citations),
			ServerMessageID: &id,
		}
		if hm.Feedback != nil {
			fb := *hm.Feedback
			msg.Feedback = &fb
		}
		out = append(out, msg)
	}
	return out
}

// DeriveTitle builds a conversation title from the opening question: the
// first MaxTitleRunes characters, with "..." appended when truncated.
func DeriveTitle(question string) string {
	q := norm.NFC.String(strings.TrimSpace(question))
	runes := []rune(q)
	if len(runes) <= MaxTitleRunes {
		return q
	}
	return strings.TrimRight(string(runes[:MaxTitleRunes]), " \t\r\n") + "..."
}
