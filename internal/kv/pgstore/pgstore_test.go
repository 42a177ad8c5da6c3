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

package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/kvtest"
)

func TestPage(t *testing.T) {
	res := page([]string{"a", "b", "c"}, 2)
	assert.Equal(t, []string{"a", "b"}, res.Keys)
	assert.Equal(t, "b", res.Cursor)
	assert.False(t, res.Complete)

	res = page([]string{"a", "b"}, 2)
	assert.Equal(t, []string{"a", "b"}, res.Keys)
	assert.True(t, res.Complete)
	assert.Empty(t, res.Cursor)
}

// TestStore_Conformance runs against a live Postgres when DATABASE_TEST_URL
// is set.
func TestStore_Conformance(t *testing.T) {
	dsn := os.Getenv("DATABASE_TEST_URL")
	if dsn == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	b, err := NewBackend(ctx, pool)
	require.NoError(t, err)

	kvtest.Run(t, func(t *testing.T) kv.Store {
		name := "test-" + uuid.NewString()
		t.Cleanup(func() {
			pool.Exec(context.Background(), `DELETE FROM kv_entries WHERE namespace = $1`, name)
		})
		return b.Namespace(name)
	}, kvtest.Options{Ordered: true})
}
