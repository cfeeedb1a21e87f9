// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SQLITE STORE
// =============================================================================

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id              TEXT PRIMARY KEY,
	conversation_id INTEGER,
	title           TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	message_count   INTEGER NOT NULL,
	preview         TEXT NOT NULL,
	body            TEXT NOT NULL,
	messages        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_updated ON transcripts(updated_at DESC);
`

// SQLiteStore keeps transcripts in a single SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Save inserts or replaces t.
func (s *SQLiteStore) Save(ctx context.Context, t *Transcript) error {
	if err := t.prepare(time.Now()); err != nil {
		return err
	}

	// Keep the original creation time when replacing.
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM transcripts WHERE id = ?`, t.ID).Scan(&created)
	switch {
	case err == nil:
		t.CreatedAt = time.Unix(0, created).UTC()
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to look up transcript: %w", err)
	}

	msgs, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	var convID any
	if t.ConversationID != nil {
		convID = *t.ConversationID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transcripts
			(id, conversation_id, title, created_at, updated_at, message_count, preview, body, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, convID, t.Title, t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(),
		len(t.Messages), t.Preview(), searchBody(t), string(msgs))
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Load returns the transcript with id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Transcript, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, title, created_at, updated_at, messages
		FROM transcripts WHERE id = ?`, id)

	var (
		t       Transcript
		convID  sql.NullInt64
		created int64
		updated int64
		msgs    string
	)
	if err := row.Scan(&t.ID, &convID, &t.Title, &created, &updated, &msgs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if convID.Valid {
		v := convID.Int64
		t.ConversationID = &v
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	t.UpdatedAt = time.Unix(0, updated).UTC()
	if err := json.Unmarshal([]byte(msgs), &t.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return &t, nil
}

// List returns all transcripts, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]TranscriptMeta, error) {
	return s.queryMetas(ctx, `
		SELECT id, conversation_id, title, created_at, updated_at, message_count, preview
		FROM transcripts ORDER BY updated_at DESC`)
}

// Search returns transcripts whose title or messages contain query.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]TranscriptMeta, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}
	return s.queryMetas(ctx, `
		SELECT id, conversation_id, title, created_at, updated_at, message_count, preview
		FROM transcripts WHERE instr(body, ?) > 0 ORDER BY updated_at DESC`, q)
}

// Delete removes the transcript with id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTranscriptNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryMetas(ctx context.Context, query string, args ...any) ([]TranscriptMeta, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var metas []TranscriptMeta
	for rows.Next() {
		var (
			m       TranscriptMeta
			convID  sql.NullInt64
			created int64
			updated int64
		)
		if err := rows.Scan(&m.ID, &convID, &m.Title, &created, &updated, &m.MessageCount, &m.Preview); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		if convID.Valid {
			v := convID.Int64
			m.ConversationID = &v
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		m.UpdatedAt = time.Unix(0, updated).UTC()
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// searchBody is the lowercased text that Search matches against.
func searchBody(t *Transcript) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(t.Title))
	for _, m := range t.Messages {
		sb.WriteByte('\n')
		sb.WriteString(strings.ToLower(m.Content))
	}
	return sb.String()
}
