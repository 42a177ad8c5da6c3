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

package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/kvtest"
)

// setupTestBackend creates a SQLite backend in a temporary directory.
func setupTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "mailpipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, b.Close()) })
	return b
}

func TestStore_Conformance(t *testing.T) {
	b := setupTestBackend(t)
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return b.Namespace(uuid.NewString())
	}, kvtest.Options{Ordered: true})
}

func TestBackend_NamespacesAreIsolated(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Namespace("raw").Put(ctx, "k", []byte("v")))

	_, ok, err := b.Namespace("matched").Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	page, err := b.Namespace("matched").List(ctx, kv.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Keys)
}

func TestBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailpipe.db")
	ctx := context.Background()

	b, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, b.Namespace("state").Put(ctx, "last_fetch_timestamp", []byte("2026-02-09T10:30:45Z")))
	require.NoError(t, b.Close())

	b, err = Open(path)
	require.NoError(t, err)
	defer b.Close()

	v, ok, err := b.Namespace("state").Get(ctx, "last_fetch_timestamp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-02-09T10:30:45Z", string(v))
}
