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

// Package memstore is an in-process kv.Store used by tests and by the
// "memory" storage backend.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
)

// Store keeps values in a map. Listing is in ascending key order and the
// cursor is the last key returned.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) List(_ context.Context, opts kv.ListOptions) (kv.ListResult, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, opts.Prefix) && k > opts.Cursor {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)

	limit := opts.EffectiveLimit()
	if len(keys) <= limit {
		return kv.ListResult{Keys: keys, Complete: true}, nil
	}
	page := keys[:limit]
	return kv.ListResult{Keys: page, Cursor: page[len(page)-1]}, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Backend hands out independent in-memory partitions. Asking for the same
// name twice returns the same Store.
type Backend struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{stores: make(map[string]*Store)}
}

// Namespace returns the partition for name, creating it on first use.
func (b *Backend) Namespace(name string) kv.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stores[name]
	if !ok {
		s = New()
		b.stores[name] = s
	}
	return s
}
