// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/sermonchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned for unknown conversation ids.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound is returned when feedback targets a message that is
	// not a stored assistant message.
	ErrMessageNotFound = errors.New("assistant message not found")
)

// =============================================================================
// STORE
// =============================================================================

type conversation struct {
	summary  model.ConversationSummary
	messages []model.HistoryMessage
}

// Store keeps conversations and feedback in memory. It is safe for
// concurrent use.
type Store struct {
	mu            sync.RWMutex
	conversations map[int64]*conversation
	messageConv   map[int64]int64 // message id -> conversation id
	nextConvID    int64
	nextMessageID int64
	nextFeedback  int64
	now           func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[int64]*conversation),
		messageConv:   make(map[int64]int64),
		now:           time.Now,
	}
}

// Begin returns the conversation a question belongs to. An unknown or absent
// id starts a new conversation titled from the question.
func (s *Store) Begin(id *int64, question string) model.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if id != nil {
		if c, ok := s.conversations[*id]; ok {
			c.summary.UpdatedAt = now
			return c.summary
		}
	}

	s.nextConvID++
	c := &conversation{summary: model.ConversationSummary{
		ID:        s.nextConvID,
		Title:     model.DeriveTitle(question),
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.conversations[c.summary.ID] = c
	return c.summary
}

// AddMessage appends a message to a conversation and returns its id.
func (s *Store) AddMessage(convID int64, msg model.HistoryMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[convID]
	if !ok {
		return 0, ErrConversationNotFound
	}
	s.nextMessageID++
	msg.ID = s.nextMessageID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	msg.Citations = model.CloneCitations(msg.Citations)
	c.messages = append(c.messages, msg)
	c.summary.UpdatedAt = msg.CreatedAt
	s.messageConv[msg.ID] = convID
	return msg.ID, nil
}

// List returns conversations newest first, paginated.
func (s *Store) List(skip, limit int) []model.ConversationSummary {
	s.mu.RLock()
	out := make([]model.ConversationSummary, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.summary)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(out) {
		return []model.ConversationSummary{}
	}
	out = out[skip:]
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Get returns a conversation with its messages.
func (s *Store) Get(id int64) (model.ConversationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return model.ConversationDetail{}, ErrConversationNotFound
	}
	detail := model.ConversationDetail{
		ConversationSummary: c.summary,
		Messages:            make([]model.HistoryMessage, len(c.messages)),
	}
	for i, m := range c.messages {
		m.Citations = model.CloneCitations(m.Citations)
		if m.Feedback != nil {
			fb := *m.Feedback
			m.Feedback = &fb
		}
		detail.Messages[i] = m
	}
	return detail, nil
}

// Rename sets a conversation title.
func (s *Store) Rename(id int64, title string) (model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return model.ConversationSummary{}, ErrConversationNotFound
	}
	c.summary.Title = title
	return c.summary, nil
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	for _, m := range c.messages {
		delete(s.messageConv, m.ID)
	}
	delete(s.conversations, id)
	return nil
}

// SetFeedback stores a rating for an assistant message, replacing any
// earlier rating.
func (s *Store) SetFeedback(messageID int64, positive bool, comment string) (model.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convID, ok := s.messageConv[messageID]
	if !ok {
		return model.Feedback{}, ErrMessageNotFound
	}
	c := s.conversations[convID]
	for i := range c.messages {
		m := &c.messages[i]
		if m.ID != messageID {
			continue
		}
		if m.Role != model.RoleAssistant {
			return model.Feedback{}, ErrMessageNotFound
		}
		if m.Feedback == nil {
			s.nextFeedback++
			m.Feedback = &model.Feedback{ID: s.nextFeedback, CreatedAt: s.now().UTC()}
		}
		m.Feedback.IsPositive = positive
		m.Feedback.Comment = comment
		return *m.Feedback, nil
	}
	return model.Feedback{}, ErrMessageNotFound
}
