// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// TURN SCOPE
// =============================================================================

// turnScope owns the context handed to the running Submit. Esc stops an
// answer through the session's Cancel; the scope only matters when the
// program quits mid-turn or a turn finishes.
//
// Shared by pointer since Bubble Tea copies the Model on every Update.
type turnScope struct {
	mu     sync.Mutex
	turns  uint64
	cancel context.CancelFunc
}

func newTurnScope() *turnScope {
	return &turnScope{}
}

// begin derives the context for a new turn from parent. A turn still
// registered is released first.
func (s *turnScope) begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	prev := s.cancel
	s.cancel = cancel
	s.turns++
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	return ctx
}

// end releases the current turn's context, if any.
func (s *turnScope) end() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// active reports whether a turn context is registered.
func (s *turnScope) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
