// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewAssistantMessage_StartsStreaming(t *testing.T) {
	m := NewAssistantMessage()
	if !m.IsStreaming {
		t.Fatal("assistant placeholder should be streaming")
	}
	if m.Content != "" {
		t.Errorf("Content = %q, want empty", m.Content)
	}
	if !strings.HasPrefix(m.ID, "assistant-") {
		t.Errorf("ID = %q, want assistant- prefix", m.ID)
	}
}

func TestMessageIDs_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewUserMessage("q").ID
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestMessage_FinalizeFreezesContent(t *testing.T) {
	m := NewAssistantMessage()
	m.SetStreamContent("Hi")
	m.SetStreamContent("Hi there")

	serverID := int64(42)
	cites := []SourceCitation{{SourceID: 1, Title: "Grace"}}
	m.Finalize("Hi there", cites, &serverID)

	if m.IsStreaming {
		t.Error("message still streaming after Finalize")
	}
	if m.Content != "Hi there" {
		t.Errorf("Content = %q", m.Content)
	}
	if m.ServerMessageID == nil || *m.ServerMessageID != 42 {
		t.Errorf("ServerMessageID = %v, want 42", m.ServerMessageID)
	}

	// The caller's slice must not alias the stored citations.
	cites[0].Title = "changed"
	if m.Citations[0].Title != "Grace" {
		t.Error("citations alias caller slice")
	}

	m.SetStreamContent("late")
	m.Finalize("later", nil, nil)
	if m.Content != "Hi there" {
		t.Errorf("finalized content changed to %q", m.Content)
	}
}

func TestMessage_FinalizeWithoutCitations(t *testing.T) {
	m := NewAssistantMessage()
	m.Finalize("answer", []SourceCitation{}, nil)
	if m.Citations != nil {
		t.Errorf("empty citation list should not be attached, got %v", m.Citations)
	}
	if m.ServerMessageID != nil {
		t.Error("ServerMessageID should stay nil")
	}
}

func TestMessage_CloneIsDeep(t *testing.T) {
	id := int64(7)
	m := &Message{
		ID:              "x",
		Role:            RoleAssistant,
		Citations:       []SourceCitation{{Title: "a"}},
		ServerMessageID: &id,
		Feedback:        &Feedback{IsPositive: true},
	}
	c := m.Clone()
	c.Citations[0].Title = "b"
	*c.ServerMessageID = 8
	c.Feedback.IsPositive = false

	if m.Citations[0].Title != "a" || *m.ServerMessageID != 7 || !m.Feedback.IsPositive {
		t.Error("Clone shares state with original")
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		want    string
	}{
		{"short", "hello", 10, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"unicode", "日本語のテキスト", 5, "日本..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &Message{Content: tc.content}
			if got := m.Preview(tc.max); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.max, got, tc.want)
			}
		})
	}
}

func TestMessage_CanReceiveFeedback(t *testing.T) {
	id := int64(1)
	m := NewAssistantMessage()
	if m.CanReceiveFeedback() {
		t.Error("streaming message cannot be rated")
	}
	m.Finalize("x", nil, &id)
	if !m.CanReceiveFeedback() {
		t.Error("finalized message with server id should be rateable")
	}
	if NewUserMessage("q").CanReceiveFeedback() {
		t.Error("user message cannot be rated")
	}
}

// =============================================================================
// CITATION TESTS
// =============================================================================

func TestSourceCitation_Label(t *testing.T) {
	tests := []struct {
		name string
		c    SourceCitation
		want string
	}{
		{
			name: "title only",
			c:    SourceCitation{Title: "Faith"},
			want: "Faith",
		},
		{
			name: "pdf with metadata",
			c: SourceCitation{
				Title: "Faith", Speaker: "Pdt. A", SermonDate: "2021-03-07",
				SermonNumber: "12", SourceType: SourceTypePDF, PageOrTimestamp: "4",
			},
			want: "Faith (Pdt. A, 2021-03-07, #12) p. 4",
		},
		{
			name: "youtube timestamp",
			c:    SourceCitation{Title: "Hope", SourceType: SourceTypeYouTube, PageOrTimestamp: "12:30"},
			want: "Hope @ 12:30",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.Label(); got != tc.want {
				t.Errorf("Label() = %q, want %q", got, tc.want)
			}
		})
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestMessagesFromHistory(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	detail := ConversationDetail{
		ConversationSummary: ConversationSummary{ID: 9, Title: "t"},
		Messages: []HistoryMessage{
			{ID: 1, Role: RoleUser, Content: "q", CreatedAt: now},
			{
				ID: 2, Role: RoleAssistant, Content: "a", CreatedAt: now,
				Citations: []SourceCitation{{SourceID: 3}},
				Feedback:  &Feedback{ID: 5, IsPositive: true},
			},
		},
	}

	msgs := MessagesFromHistory(detail)
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "1" || msgs[1].ID != "2" {
		t.Errorf("ids = %q, %q", msgs[0].ID, msgs[1].ID)
	}
	if msgs[1].ServerMessageID == nil || *msgs[1].ServerMessageID != 2 {
		t.Error("server id not mapped")
	}
	if msgs[1].Feedback == nil || msgs[1].Feedback.ID != 5 {
		t.Error("feedback not mapped")
	}
	if msgs[0].IsStreaming || msgs[1].IsStreaming {
		t.Error("history messages must not be streaming")
	}
}

func TestDeriveTitle(t *testing.T) {
	short := "What does Romans 8 say about hope?"
	if got := DeriveTitle("  " + short + "  "); got != short {
		t.Errorf("DeriveTitle(short) = %q", got)
	}

	long := strings.Repeat("a", 79) + " " + strings.Repeat("b", 30)
	got := DeriveTitle(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long title not truncated: %q", got)
	}
	// Trailing whitespace at the cut point is dropped.
	if got != strings.Repeat("a", 79)+"..." {
		t.Errorf("DeriveTitle(long) = %q", got)
	}

	exact := strings.Repeat("x", MaxTitleRunes)
	if got := DeriveTitle(exact); got != exact {
		t.Errorf("exact-length title changed: %q", got)
	}
}
