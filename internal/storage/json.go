// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/sermonchat/internal/util"
)

// =============================================================================
// JSON STORE
// =============================================================================

// JSONStore keeps one JSON file per transcript in a directory.
type JSONStore struct {
	dir string
	mu  sync.RWMutex
}

// NewJSONStore creates a store rooted at dir.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create transcripts directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *JSONStore) Dir() string { return s.dir }

// Save writes t to <dir>/<id>.json.
func (s *JSONStore) Save(_ context.Context, t *Transcript) error {
	if err := t.prepare(time.Now()); err != nil {
		return err
	}
	if err := validateID(t.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, err := s.read(t.ID); err == nil && !prev.CreatedAt.IsZero() {
		t.CreatedAt = prev.CreatedAt
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	if err := util.AtomicWriteFile(s.filePath(t.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Load returns the transcript with id.
func (s *JSONStore) Load(_ context.Context, id string) (*Transcript, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id)
}

// List returns all transcripts, newest first.
func (s *JSONStore) List(ctx context.Context) ([]TranscriptMeta, error) {
	return s.scan(ctx, "")
}

// Search returns transcripts whose title or messages contain query.
func (s *JSONStore) Search(ctx context.Context, query string) ([]TranscriptMeta, error) {
	return s.scan(ctx, query)
}

// Delete removes the transcript with id.
func (s *JSONStore) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrTranscriptNotFound
		}
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) read(id string) (*Transcript, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	return &t, nil
}

func (s *JSONStore) scan(ctx context.Context, query string) ([]TranscriptMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcripts directory: %w", err)
	}

	var metas []TranscriptMeta
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		t, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue // Skip corrupted files
		}
		if t.Matches(query) {
			metas = append(metas, t.Meta())
		}
	}
	sortMetas(metas)
	return metas, nil
}

func (s *JSONStore) filePath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validateID rejects ids that would escape the storage directory.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid transcript id %q", id)
	}
	return nil
}
