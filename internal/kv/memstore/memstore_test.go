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

package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/kvtest"
)

func TestStore_Conformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return New() }, kvtest.Options{Ordered: true})
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("abc")))

	v, _, _ := s.Get(ctx, "k")
	v[0] = 'z'

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestBackend_NamespacesAreIsolated(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	require.NoError(t, b.Namespace("raw").Put(ctx, "k", []byte("raw")))
	_, ok, err := b.Namespace("matched").Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := b.Namespace("raw").Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "raw", string(v))
}
