// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTranscriptNotFound is returned when a transcript does not exist.
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrDisabled is returned by Open when the driver is "none".
	ErrDisabled = errors.New("transcript storage disabled")

	// ErrEmptyTranscript is returned when saving a transcript with no messages.
	ErrEmptyTranscript = errors.New("transcript has no messages")
)

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Transcript is a stored chat session.
type Transcript struct {
	ID             string          `json:"id"`
	ConversationID *int64          `json:"conversation_id,omitempty"`
	Title          string          `json:"title"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Messages       []model.Message `json:"messages"`
}

// TranscriptMeta is the list view of a transcript.
type TranscriptMeta struct {
	ID             string    `json:"id"`
	ConversationID *int64    `json:"conversation_id,omitempty"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	MessageCount   int       `json:"message_count"`
	Preview        string    `json:"preview"`
}

// FromSnapshot builds a transcript from session messages. Messages still
// streaming are dropped. Sessions attached to a server conversation get a
// stable id so saving again replaces the earlier copy.
func FromSnapshot(conversationID *int64, messages []model.Message) *Transcript {
	t := &Transcript{}
	if conversationID != nil {
		id := *conversationID
		t.ConversationID = &id
		t.ID = "conv-" + strconv.FormatInt(id, 10)
	}
	for i := range messages {
		if messages[i].IsStreaming {
			continue
		}
		t.Messages = append(t.Messages, messages[i].Clone())
	}
	return t
}

// prepare fills the derived fields before a save.
func (t *Transcript) prepare(now time.Time) error {
	if len(t.Messages) == 0 {
		return ErrEmptyTranscript
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Title == "" {
		t.Title = t.deriveTitle()
	}
	t.UpdatedAt = now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return nil
}

func (t *Transcript) deriveTitle() string {
	for _, m := range t.Messages {
		if m.Role == model.RoleUser && !m.IsEmpty() {
			return model.DeriveTitle(util.SingleLine(m.Content))
		}
	}
	return "New conversation"
}

// Preview returns the first question, shortened for lists.
func (t *Transcript) Preview() string {
	for _, m := range t.Messages {
		if m.Role == model.RoleUser && !m.IsEmpty() {
			return util.TruncateRunes(util.SingleLine(m.Content), 80)
		}
	}
	return ""
}

// Meta returns the list view of t.
func (t *Transcript) Meta() TranscriptMeta {
	return TranscriptMeta{
		ID:             t.ID,
		ConversationID: t.ConversationID,
		Title:          t.Title,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		MessageCount:   len(t.Messages),
		Preview:        t.Preview(),
	}
}

// Matches reports whether query occurs (case-insensitively) in the title or
// any message.
func (t *Transcript) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	for _, m := range t.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

// ExportMarkdown renders the transcript as Markdown, with citations listed
// under each answer.
func (t *Transcript) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + t.Title + "\n\n")
	sb.WriteString("Created: " + t.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, m := range t.Messages {
		sb.WriteString("**" + m.Role.DisplayName() + "** (" + m.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
		if m.HasCitations() {
			sb.WriteString("Sources:\n\n")
			for i, c := range m.Citations {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Label())
			}
			sb.WriteString("\n")
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// sortMetas orders transcripts most recently updated first.
func sortMetas(metas []TranscriptMeta) {
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists transcripts. Implementations are safe for concurrent use.
type Store interface {
	// Save inserts or replaces t, filling ID, Title and timestamps.
	Save(ctx context.Context, t *Transcript) error
	Load(ctx context.Context, id string) (*Transcript, error)
	// List returns all transcripts, most recently updated first.
	List(ctx context.Context) ([]TranscriptMeta, error)
	Search(ctx context.Context, query string) ([]TranscriptMeta, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open creates the store selected by cfg.
func Open(cfg config.StorageConfig) (Store, error) {
	path := util.ExpandHome(cfg.Path)
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLiteStore(path)
	case "bolt":
		return NewBoltStore(path)
	case "json":
		return NewJSONStore(path)
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Prune deletes the oldest transcripts beyond keep. It returns how many were
// removed.
func Prune(ctx context.Context, s Store, keep int) (int, error) {
	metas, err := s.List(ctx)
	if err != nil || keep < 0 || len(metas) <= keep {
		return 0, err
	}
	removed := 0
	for _, m := range metas[keep:] {
		if err := s.Delete(ctx, m.ID); err != nil && !errors.Is(err, ErrTranscriptNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders transcripts as a fixed-width table.
func FormatList(metas []TranscriptMeta) string {
	if len(metas) == 0 {
		return "No saved transcripts."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 14) + " " + util.PadRight("Updated", 16) + " " + util.PadRight("Msgs", 5) + " Title\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")
	for _, m := range metas {
		sb.WriteString(util.PadRight(m.ID, 14) + " " +
			util.PadRight(m.UpdatedAt.Local().Format("2006-01-02 15:04"), 16) + " " +
			util.PadRight(strconv.Itoa(m.MessageCount), 5) + " " +
			util.TruncateWidth(m.Title, 40) + "\n")
	}
	return sb.String()
}
