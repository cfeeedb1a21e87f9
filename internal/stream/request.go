// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// Request is the body of a chat stream request.
type Request struct {
	Question       string `json:"question"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	// Language forces the answer language ("id" or "en"); empty lets the
	// service detect it.
	Language string `json:"language,omitempty"`
}
