// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one turn in a conversation.
//
// Content of an assistant message changes while IsStreaming is true and never
// again once the message has been finalized. Citations and ServerMessageID are
// attached at finalization. Feedback is only ever set for messages loaded from
// history.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	Content     string `json:"content"`
	IsStreaming bool   `json:"-"`

	Citations       []SourceCitation `json:"citations,omitempty"`
	ServerMessageID *int64           `json:"server_message_id,omitempty"`
	Feedback        *Feedback        `json:"feedback,omitempty"`
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        generateID(RoleUser),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant placeholder in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateID(RoleAssistant),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// SetStreamContent replaces the content of a streaming message with the full
// accumulated text. It is a no-op once the message is finalized.
func (m *Message) SetStreamContent(content string) {
	if m.IsStreaming {
		m.Content = content
	}
}

// Finalize ends streaming and attaches the end-of-turn data. Calling it on an
// already finalized message does nothing.
func (m *Message) Finalize(content string, citations []SourceCitation, serverID *int64) {
	if !m.IsStreaming {
		return
	}
	m.Content = content
	if len(citations) > 0 {
		m.Citations = CloneCitations(citations)
	}
	if serverID != nil {
		id := *serverID
		m.ServerMessageID = &id
	}
	m.IsStreaming = false
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() Message {
	c := *m
	c.Citations = CloneCitations(m.Citations)
	if m.ServerMessageID != nil {
		id := *m.ServerMessageID
		c.ServerMessageID = &id
	}
	if m.Feedback != nil {
		fb := *m.Feedback
		c.Feedback = &fb
	}
	return c
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no visible content.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// HasCitations reports whether any sources were attached.
func (m *Message) HasCitations() bool {
	return len(m.Citations) > 0
}

// CanReceiveFeedback reports whether the message can be rated on the service.
func (m *Message) CanReceiveFeedback() bool {
	return m.Role == RoleAssistant && !m.IsStreaming && m.ServerMessageID != nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates an identifier unique for the lifetime of the process.
func generateID(role Role) string {
	return string(role) + "-" + uuid.NewString()
}
