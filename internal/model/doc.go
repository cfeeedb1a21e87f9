// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the domain types shared by the stream parser, the
// session controller, the HTTP client and the renderers.
//
// # Key Types
//
//   - Message: Single turn with role, content, streaming flag and end-of-turn data
//   - SourceCitation: Reference into the sermon corpus attached to an answer
//   - Feedback: Prior thumbs up/down rating loaded from history
//   - ConversationSummary / ConversationDetail: Remote history records
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Create the two messages of a turn:
//
//	user := model.NewUserMessage("What is grace?")
//	reply := model.NewAssistantMessage()
//	reply.SetStreamContent("Grace is")
//	reply.Finalize("Grace is unmerited favour.", citations, &serverID)
//
// Seed a session from history:
//
//	msgs := model.MessagesFromHistory(detail)
package model
