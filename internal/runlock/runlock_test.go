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

package runlock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	l := New(nil, "", 0)
	assert.Equal(t, DefaultKey, l.key)
	assert.Equal(t, DefaultTTL, l.ttl)
}

func TestRelease_WithoutAcquireIsNoop(t *testing.T) {
	require.NoError(t, New(nil, "", 0).Release(context.Background()))
}

func TestLock_Redis(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	key := "mailpipe-test:run-lock"
	rdb.Del(ctx, key)
	defer rdb.Del(ctx, key)

	a := New(rdb, key, time.Minute)
	b := New(rdb, key, time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	// b never held the lock, so its release leaves a's key alone.
	require.NoError(t, b.Release(ctx))
	assert.Equal(t, int64(1), rdb.Exists(ctx, key).Val())

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx))
}

func TestLock_ExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	key := "mailpipe-test:run-lock-expiry"
	rdb.Del(ctx, key)
	defer rdb.Del(ctx, key)

	a := New(rdb, key, 50*time.Millisecond)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)

	b := New(rdb, key, time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Release(ctx))
	assert.Equal(t, int64(1), rdb.Exists(ctx, key).Val(), "stale release must not delete the successor's lock")
	require.NoError(t, b.Release(ctx))
}
