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

// Package redisstore implements kv.Store on Redis. Each namespace is one
// hash; listing uses HSCAN with a MATCH pattern, so the cursor is the Redis
// scan cursor and key order is unspecified.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
)

// DefaultKeyPrefix namespaces the pipeline's hashes in Redis.
const DefaultKeyPrefix = "mailpipe:kv:"

// Backend hands out per-namespace stores over one Redis client.
type Backend struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewBackend creates a Redis-backed kv backend. An empty keyPrefix selects
// DefaultKeyPrefix.
func NewBackend(rdb *redis.Client, keyPrefix string) *Backend {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Backend{rdb: rdb, keyPrefix: keyPrefix}
}

// Namespace returns the store for name.
func (b *Backend) Namespace(name string) kv.Store {
	return &Store{rdb: b.rdb, hash: b.keyPrefix + name}
}

// Store is a single namespace backed by one Redis hash.
type Store struct {
	rdb  *redis.Client
	hash string
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.HGet(ctx, s.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis HGET %s: %w", s.hash, err)
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", s.hash, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("redis HDEL %s: %w", s.hash, err)
	}
	return nil
}

// List runs one HSCAN step. Limit is passed as the COUNT hint, so a page
// may hold more or fewer keys than requested.
func (s *Store) List(ctx context.Context, opts kv.ListOptions) (kv.ListResult, error) {
	var cursor uint64
	if opts.Cursor != "" {
		c, err := strconv.ParseUint(opts.Cursor, 10, 64)
		if err != nil {
			return kv.ListResult{}, fmt.Errorf("invalid redis cursor %q: %w", opts.Cursor, err)
		}
		cursor = c
	}

	fieldsAndValues, next, err := s.rdb.HScan(ctx, s.hash, cursor, matchPattern(opts.Prefix), int64(opts.EffectiveLimit())).Result()
	if err != nil {
		return kv.ListResult{}, fmt.Errorf("redis HSCAN %s: %w", s.hash, err)
	}

	keys := make([]string, 0, len(fieldsAndValues)/2)
	for i := 0; i < len(fieldsAndValues); i += 2 {
		keys = append(keys, fieldsAndValues[i])
	}

	if next == 0 {
		return kv.ListResult{Keys: keys, Complete: true}, nil
	}
	return kv.ListResult{Keys: keys, Cursor: strconv.FormatUint(next, 10)}, nil
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// matchPattern turns a literal prefix into a Redis glob.
func matchPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}
