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

// Package kv defines the key-value storage contract the pipeline writes
// through, and a registry mapping store names to backends.
//
// Each named store is an independent partition: the raw store, the matched
// store, one store per category, and the state store. Backends live in
// sub-packages (memstore, redisstore, pgstore, sqlitestore).
package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DefaultListLimit is used when ListOptions.Limit is zero.
const DefaultListLimit = 1000

// ErrUnknownStore is returned when a store name has no registered backend.
var ErrUnknownStore = errors.New("unknown store")

// Store is a single key-value partition.
//
// Put is an unconditional upsert. List returns keys only, in pages; callers
// continue with the returned Cursor until Complete is true. Key order
// within and across pages is backend-defined.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Delete(ctx context.Context, key string) error
}

// ListOptions selects a page of keys.
type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// ListResult is one page of keys.
type ListResult struct {
	Keys     []string
	Cursor   string
	Complete bool
}

// Backend hands out named partitions that share one connection.
type Backend interface {
	Namespace(name string) Store
}

// EffectiveLimit returns opts.Limit or DefaultListLimit when unset.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// Registry resolves store names to Store implementations. It is populated
// once at startup and read-only afterwards.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register binds name to s, replacing any previous binding.
func (r *Registry) Register(name string, s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = s
}

// RegisterAll binds every name to its partition on b.
func (r *Registry) RegisterAll(b Backend, names ...string) {
	for _, name := range names {
		r.Register(name, b.Namespace(name))
	}
}

// Store returns the store bound to name.
func (r *Registry) Store(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, name)
	}
	return s, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stores[name]
	return ok
}

// Names returns the registered store names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Walk pages through every key under prefix and calls fn for each one.
// It stops at the first error returned by fn or the store.
func Walk(ctx context.Context, s Store, prefix string, fn func(key string) error) error {
	opts := ListOptions{Prefix: prefix}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.List(ctx, opts)
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		for _, key := range page.Keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		if page.Complete {
			return nil
		}
		if page.Cursor == "" || page.Cursor == opts.Cursor {
			return fmt.Errorf("list keys: incomplete page without a new cursor")
		}
		opts.Cursor = page.Cursor
	}
}
