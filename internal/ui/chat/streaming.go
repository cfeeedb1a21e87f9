// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sermonchat/internal/session"
)

// =============================================================================
// SNAPSHOT BUFFER
// =============================================================================

const (
	defaultMaxFPS = 30
	frameInterval = time.Second / defaultMaxFPS
)

// snapshotBuffer keeps the newest snapshot published by the session. Offer
// runs on the turn goroutine; Take runs in the Bubble Tea loop.
type snapshotBuffer struct {
	mu      sync.Mutex
	latest  session.Snapshot
	pending bool
}

func newSnapshotBuffer() *snapshotBuffer {
	return &snapshotBuffer{}
}

// Offer stores snap unless a newer one is already held.
func (b *snapshotBuffer) Offer(snap session.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending && snap.Version < b.latest.Version {
		return
	}
	b.latest = snap
	b.pending = true
}

// Take returns the held snapshot, if any, and empties the buffer.
func (b *snapshotBuffer) Take() (session.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending {
		return session.Snapshot{}, false
	}
	b.pending = false
	return b.latest, true
}

// Pending reports whether a snapshot is waiting.
func (b *snapshotBuffer) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd schedules the next frame while a turn is running.
func streamTickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
