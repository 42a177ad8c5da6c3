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

// Package runlock provides a cross-process pipeline lock using a Redis key
// with TTL, so two replicas never run a pass at the same time.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a crashed holder can block other replicas.
	// It must exceed the longest expected pass.
	DefaultTTL = 10 * time.Minute

	// DefaultKey is the Redis key holding the current owner token.
	DefaultKey = "mailpipe:run-lock"
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a single-holder lock. A Lock value is used by one process; each
// Acquire gets a fresh owner token.
type Lock struct {
	rdb   *redis.Client
	key   string
	ttl   time.Duration
	token string
}

// New creates a lock. Empty key and zero ttl select the defaults.
func New(rdb *redis.Client, key string, ttl time.Duration) *Lock {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lock{rdb: rdb, key: key, ttl: ttl}
}

// Acquire returns true if the lock was taken. It returns false without error
// when another holder owns it.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()

	// SET NX = set only if key does not exist.
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("run lock SETNX: %w", err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release gives the lock up if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("run lock release: %w", err)
	}
	return nil
}
