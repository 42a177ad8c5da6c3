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

// Package pgstore implements kv.Store on a single Postgres table shared by
// all namespaces. Listing is keyset-paginated in byte order of the key.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
)

// Backend owns the pool and hands out per-namespace stores.
type Backend struct {
	pool *pgxpool.Pool
}

// NewBackend creates a Postgres kv backend. It ensures the kv_entries table
// exists on creation.
func NewBackend(ctx context.Context, pool *pgxpool.Pool) (*Backend, error) {
	b := &Backend{pool: pool}
	if err := b.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure kv schema: %w", err)
	}
	slog.Info("postgres kv store initialised")
	return b, nil
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			namespace  TEXT NOT NULL,
			key        TEXT COLLATE "C" NOT NULL,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		);
	`)
	return err
}

// Namespace returns the store for name.
func (b *Backend) Namespace(name string) kv.Store {
	return &Store{pool: b.pool, namespace: name}
}

// Store is one namespace within kv_entries.
type Store struct {
	pool      *pgxpool.Pool
	namespace string
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2
	`, s.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", s.namespace, key, err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value      = EXCLUDED.value,
			updated_at = NOW()
	`, s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM kv_entries WHERE namespace = $1 AND key = $2
	`, s.namespace, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", s.namespace, key, err)
	}
	return nil
}

// List returns up to Limit keys after Cursor. One extra row is fetched to
// tell whether the page is the last one.
func (s *Store) List(ctx context.Context, opts kv.ListOptions) (kv.ListResult, error) {
	limit := opts.EffectiveLimit()
	rows, err := s.pool.Query(ctx, `
		SELECT key FROM kv_entries
		WHERE namespace = $1
		  AND key > $2
		  AND starts_with(key, $3)
		ORDER BY key
		LIMIT $4
	`, s.namespace, opts.Cursor, opts.Prefix, limit+1)
	if err != nil {
		return kv.ListResult{}, fmt.Errorf("list %s: %w", s.namespace, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return kv.ListResult{}, fmt.Errorf("list %s: %w", s.namespace, err)
	}
	return page(keys, limit), nil
}

func page(keys []string, limit int) kv.ListResult {
	if len(keys) <= limit {
		return kv.ListResult{Keys: keys, Complete: true}
	}
	keys = keys[:limit]
	return kv.ListResult{Keys: keys, Cursor: keys[len(keys)-1]}
}
