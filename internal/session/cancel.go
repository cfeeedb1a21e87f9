// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// =============================================================================
// CANCELLATION TOKEN
// =============================================================================

// cancelToken is the cancellation flag of one turn, together with the cancel
// function of the turn's context. Every turn gets a fresh token, so a new
// submit always starts with the flag cleared.
type cancelToken struct {
	mu         sync.Mutex
	cancelled  bool
	cancelFunc context.CancelFunc
}

func newCancelToken(fn context.CancelFunc) *cancelToken {
	return &cancelToken{cancelFunc: fn}
}

// cancel raises the flag. With closeTransport the turn's context is cancelled
// as well, which aborts the network read.
func (t *cancelToken) cancel(closeTransport bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	if closeTransport && t.cancelFunc != nil {
		t.cancelFunc()
		t.cancelFunc = nil
	}
}

// isCancelled reports whether cancel has been called.
func (t *cancelToken) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// release cancels the context without raising the flag. Safe to call more
// than once.
func (t *cancelToken) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelFunc != nil {
		t.cancelFunc()
		t.cancelFunc = nil
	}
}
