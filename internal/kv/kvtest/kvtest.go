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

// Package kvtest holds the behavioural checks every kv.Store backend must
// pass. Backend packages call Run from their own tests.
package kvtest

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
)

// Options tunes the suite for backend capabilities.
type Options struct {
	// Ordered backends return keys in ascending order with the last key as
	// the cursor.
	Ordered bool
}

// Run executes the suite. newStore must return an empty, isolated store.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store, opts Options) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "k", []byte("one")))
		require.NoError(t, s.Put(ctx, "k", []byte("two")))

		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "two", string(v))
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "k", []byte("v")))
		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"))

		_, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ListPrefixAcrossPages", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var want []string
		for i := 0; i < 25; i++ {
			key := fmt.Sprintf("2026.01.%02d_a_b_00-00-00", i+1)
			want = append(want, key)
			require.NoError(t, s.Put(ctx, key, []byte("x")))
		}
		require.NoError(t, s.Put(ctx, "2025.12.31_other", []byte("x")))
		require.NoError(t, s.Put(ctx, "last_fetch_timestamp", []byte("x")))

		var got []string
		cursor := ""
		for pages := 0; pages < 100; pages++ {
			page, err := s.List(ctx, kv.ListOptions{Prefix: "2026.", Cursor: cursor, Limit: 10})
			require.NoError(t, err)
			got = append(got, page.Keys...)
			if opts.Ordered {
				assert.LessOrEqual(t, len(page.Keys), 10)
				assert.True(t, sort.StringsAreSorted(page.Keys))
			}
			if page.Complete {
				break
			}
			require.NotEmpty(t, page.Cursor)
			cursor = page.Cursor
		}

		sort.Strings(got)
		assert.Equal(t, want, dedupe(got))
	})

	t.Run("ListPrefixIsLiteral", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "a_b", []byte("x")))
		require.NoError(t, s.Put(ctx, "axb", []byte("x")))
		require.NoError(t, s.Put(ctx, "a*c", []byte("x")))
		require.NoError(t, s.Put(ctx, "A_b", []byte("x")))

		var got []string
		require.NoError(t, kv.Walk(ctx, s, "a_", func(key string) error {
			got = append(got, key)
			return nil
		}))
		assert.Equal(t, []string{"a_b"}, got)

		got = nil
		require.NoError(t, kv.Walk(ctx, s, "a*", func(key string) error {
			got = append(got, key)
			return nil
		}))
		assert.Equal(t, []string{"a*c"}, got)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		page, err := s.List(context.Background(), kv.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, page.Keys)
		assert.True(t, page.Complete)
	})
}

// dedupe drops adjacent repeats from a sorted slice. Scan-based backends
// may return a key more than once across pages.
func dedupe(keys []string) []string {
	out := keys[:0:0]
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}
