// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is a local stand-in for the sermon question-answering
// service, used for development and end-to-end tests of the client.
//
// It speaks the same wire protocol as the real service: answers stream as
// "data: <json>" frames carrying conversation, token, citations, telemetry,
// done and message_id events, and history and feedback are plain JSON REST.
// Answers come from a small built-in sermon corpus rather than a model.
//
// # Endpoints
//
//   - POST   /api/chat/stream         - streamed answer (SSE)
//   - GET    /api/conversations       - list conversations (?skip=&limit=)
//   - GET    /api/conversations/:id   - conversation with messages
//   - PATCH  /api/conversations/:id   - rename
//   - DELETE /api/conversations/:id   - delete
//   - POST   /api/feedback            - rate an assistant message (upsert)
//   - GET    /api/health              - health check
//
// # Authentication
//
// With no token configured every caller is the local user. With a token,
// history and feedback require it and the stream endpoint answers anonymous
// callers without persisting anything (no conversation or message_id events).
//
// # Key Types
//
//   - Server: gin engine, store and answerer
//   - Store: in-memory conversations, messages and feedback
//   - Answerer: produces answers; CorpusAnswerer is the default
//
// # Usage
//
//	srv := server.New(cfg.Server, server.WithLogger(logger))
//	if err := srv.ListenAndServe(ctx); err != nil {
//		return err
//	}
package server
