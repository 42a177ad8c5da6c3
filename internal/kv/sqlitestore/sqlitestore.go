// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlitestore implements kv.Store on a local SQLite file for
// single-node deployments and operator tooling.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
)

// Backend owns the database handle and hands out per-namespace stores.
type Backend struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Backend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, path: path}
	if err := b.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure kv schema: %w", err)
	}
	return b, nil
}

func (b *Backend) ensureSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		) WITHOUT ROWID
	`)
	return err
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Path returns the database file path.
func (b *Backend) Path() string {
	return b.path
}

// Namespace returns the store for name.
func (b *Backend) Namespace(name string) kv.Store {
	return &Store{db: b.db, namespace: name}
}

// Store is one namespace within kv_entries.
type Store struct {
	db        *sql.DB
	namespace string
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", s.namespace, key, err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

// List returns up to Limit keys after Cursor in byte order. The prefix test
// uses substr rather than LIKE, which is case-insensitive in SQLite.
func (s *Store) List(ctx context.Context, opts kv.ListOptions) (kv.ListResult, error) {
	limit := opts.EffectiveLimit()
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM kv_entries
		WHERE namespace = ?1
		  AND key > ?2
		  AND substr(key, 1, length(?3)) = ?3
		ORDER BY key
		LIMIT ?4
	`, s.namespace, opts.Cursor, opts.Prefix, limit+1)
	if err != nil {
		return kv.ListResult{}, fmt.Errorf("list %s: %w", s.namespace, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return kv.ListResult{}, fmt.Errorf("list %s: %w", s.namespace, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return kv.ListResult{}, fmt.Errorf("list %s: %w", s.namespace, err)
	}

	if len(keys) <= limit {
		return kv.ListResult{Keys: keys, Complete: true}, nil
	}
	keys = keys[:limit]
	return kv.ListResult{Keys: keys, Cursor: keys[len(keys)-1]}, nil
}
