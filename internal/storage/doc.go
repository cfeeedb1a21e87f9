// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a local cache of finished chat sessions.
//
// Only finalized messages are stored: a transcript built from a session that
// is still streaming leaves the in-progress answer out.
//
// # Key Types
//
//   - Store: transcript persistence, implemented by three drivers
//   - SQLiteStore: single-file database (modernc.org/sqlite, no cgo)
//   - BoltStore: bbolt key/value file
//   - JSONStore: one JSON file per transcript in a directory
//   - Transcript, TranscriptMeta: stored session and its list entry
//
// # Usage
//
//	store, err := storage.Open(cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	t := storage.FromSnapshot(snap.ConversationID, snap.Messages)
//	err = store.Save(ctx, t)
//
//	metas, err := store.List(ctx)
//	hits, err := store.Search(ctx, "grace")
//
// # Storage Location
//
// The default is ~/.sermonchat/transcripts.db (sqlite).
package storage
