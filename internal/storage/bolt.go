// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// =============================================================================
// BOLT STORE
// =============================================================================

var transcriptsBucket = []byte("transcripts")

// BoltStore keeps transcripts in a bbolt file, one JSON value per key.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the bolt file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(transcriptsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Save inserts or replaces t.
func (s *BoltStore) Save(_ context.Context, t *Transcript) error {
	if err := t.prepare(time.Now()); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(transcriptsBucket)
		if old := b.Get([]byte(t.ID)); old != nil {
			var prev Transcript
			if err := json.Unmarshal(old, &prev); err == nil && !prev.CreatedAt.IsZero() {
				t.CreatedAt = prev.CreatedAt
			}
		}

		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode transcript: %w", err)
		}
		return b.Put([]byte(t.ID), data)
	})
}

// Load returns the transcript with id.
func (s *BoltStore) Load(_ context.Context, id string) (*Transcript, error) {
	var t Transcript
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(transcriptsBucket).Get([]byte(id))
		if data == nil {
			return ErrTranscriptNotFound
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all transcripts, newest first.
func (s *BoltStore) List(ctx context.Context) ([]TranscriptMeta, error) {
	return s.scan(ctx, "")
}

// Search returns transcripts whose title or messages contain query.
func (s *BoltStore) Search(ctx context.Context, query string) ([]TranscriptMeta, error) {
	return s.scan(ctx, query)
}

// Delete removes the transcript with id.
func (s *BoltStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(transcriptsBucket)
		if b.Get([]byte(id)) == nil {
			return ErrTranscriptNotFound
		}
		return b.Delete([]byte(id))
	})
}

// Close closes the bolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) scan(ctx context.Context, query string) ([]TranscriptMeta, error) {
	var metas []TranscriptMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(transcriptsBucket).ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var t Transcript
			if err := json.Unmarshal(v, &t); err != nil {
				return nil // Skip corrupted entries
			}
			if t.Matches(query) {
				metas = append(metas, t.Meta())
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortMetas(metas)
	return metas, nil
}
