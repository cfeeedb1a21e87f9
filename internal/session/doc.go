// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the chat session controller.
//
// A Controller owns the message list of one conversation and drives a single
// question/answer turn at a time: it opens the answer stream, applies every
// decoded event in arrival order and finalizes the assistant message exactly
// once, whether the turn completed, failed or was cancelled.
//
// # Key Types
//
//   - Controller: Session state plus the Submit, Cancel and Reset operations
//   - Snapshot: Deep copy of the session state for renderers
//   - Streamer: Transport that opens the answer stream
//   - TurnError: Transport failure of a turn, with the partial answer
//
// # States
//
//	Idle -> Sending -> Streaming -> Idle
//
// Sending means the request is out and no event has arrived yet. Failures do
// not have a state of their own; they end up in the assistant message content.
//
// # Usage
//
//	ctrl := session.New(client, session.WithLogger(logger))
//	unsubscribe := ctrl.Subscribe(func(s session.Snapshot) {
//	    render(s)
//	})
//	defer unsubscribe()
//
//	go ctrl.Submit(ctx, "Apa itu anugerah?")
//	...
//	ctrl.Cancel() // stop at the next event boundary
//
// # Cancellation
//
// Cancel sets a per-turn flag checked before each event is applied. By default
// it also cancels the turn's context so a blocked read returns at once instead
// of waiting for the next event. Cancelling the context passed to Submit stops
// the turn at the same boundary.
package session
