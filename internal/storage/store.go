// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations and the installed-model set in a
// local SQLite database.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/locallm-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrDatabaseError = errors.New("database error")
	ErrInvalidPath   = errors.New("invalid path")
)

// =============================================================================
// SCHEMA
// =============================================================================

// SchemaVersion tracks the database schema version for migrations.
const SchemaVersion = 1

const schema = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Conversations: one row per conversation, message history as JSON
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL, -- Unix timestamp, listing order
    title TEXT NOT NULL,
    data BLOB NOT NULL           -- full conversation JSON
);

CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at);

-- Installed models: the set of models the user has installed, in order
CREATE TABLE IF NOT EXISTS installed_models (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL
) WITHOUT ROWID;
`

const initMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`

// =============================================================================
// STORE
// =============================================================================

// Store is the SQLite-backed persistence layer. Safe for concurrent use; the
// connection pool is limited to one connection because SQLite allows a single
// writer at a time.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the default database location (~/.locallm/locallm.db).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".locallm", "locallm.db"), nil
}

// Open opens (creating if needed) the database at path and initializes the
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(initMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// CONVERSATION PERSISTENCE
// =============================================================================

// SaveAll replaces the stored conversation set with the given one in a single
// transaction.
func (s *Store) SaveAll(conversations []*model.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return fmt.Errorf("%w: clear conversations: %v", ErrDatabaseError, err)
	}

	stmt, err := tx.Prepare("INSERT INTO conversations (id, created_at, title, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()

	for _, conv := range conversations {
		data, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation %s: %w", conv.ID, err)
		}
		if _, err := stmt.Exec(conv.ID, conv.Timestamp.Unix(), conv.Title, data); err != nil {
			return fmt.Errorf("%w: insert conversation %s: %v", ErrDatabaseError, conv.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabaseError, err)
	}
	return nil
}

// LoadAll returns every stored conversation, newest first. A row whose JSON
// no longer parses is skipped rather than failing the whole load.
func (s *Store) LoadAll() ([]*model.Conversation, error) {
	rows, err := s.db.Query("SELECT data FROM conversations ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: query conversations: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var conversations []*model.Conversation
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: scan conversation: %v", ErrDatabaseError, err)
		}

		var conv model.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue // corrupt row, skip
		}
		conversations = append(conversations, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate conversations: %v", ErrDatabaseError, err)
	}
	return conversations, nil
}

// =============================================================================
// INSTALLED MODEL PERSISTENCE
// =============================================================================

// SaveInstalled replaces the stored installed-model set, preserving order.
func (s *Store) SaveInstalled(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM installed_models"); err != nil {
		return fmt.Errorf("%w: clear installed models: %v", ErrDatabaseError, err)
	}

	for i, id := range ids {
		if _, err := tx.Exec("INSERT INTO installed_models (id, position) VALUES (?, ?)", id, i); err != nil {
			return fmt.Errorf("%w: insert installed model %s: %v", ErrDatabaseError, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabaseError, err)
	}
	return nil
}

// LoadInstalled returns the installed-model identifiers in install order.
func (s *Store) LoadInstalled() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM installed_models ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("%w: query installed models: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan installed model: %v", ErrDatabaseError, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate installed models: %v", ErrDatabaseError, err)
	}
	return ids, nil
}
