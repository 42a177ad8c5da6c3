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

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
)

// Keys in the state store.
const (
	WatermarkKey = "last_fetch_timestamp"
	LastRunKey   = "pipeline_last_run"
)

// State persists the watermark and the last run summary.
type State struct {
	store kv.Store
}

// NewState wraps the state store.
func NewState(store kv.Store) *State {
	return &State{store: store}
}

// Watermark returns the stored watermark, or nil if none has been saved.
func (s *State) Watermark(ctx context.Context) (*time.Time, error) {
	data, ok, err := s.store.Get(ctx, WatermarkKey)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	if !ok || strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse watermark %q: %w", string(data), err)
	}
	t = t.UTC()
	return &t, nil
}

// AdvanceWatermark stores t if it is newer than the stored watermark and
// reports whether it did. The stored value never moves backwards.
func (s *State) AdvanceWatermark(ctx context.Context, t time.Time) (bool, error) {
	current, err := s.Watermark(ctx)
	if err != nil {
		return false, err
	}
	if current != nil && !t.After(*current) {
		return false, nil
	}
	if err := s.SetWatermark(ctx, t); err != nil {
		return false, err
	}
	return true, nil
}

// SetWatermark stores t unconditionally. Operators use it to rewind.
func (s *State) SetWatermark(ctx context.Context, t time.Time) error {
	if err := s.store.Put(ctx, WatermarkKey, []byte(t.UTC().Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	slog.Debug("watermark saved", "watermark", t.UTC())
	return nil
}

// ClearWatermark removes the watermark so the next run fetches everything.
func (s *State) ClearWatermark(ctx context.Context) error {
	if err := s.store.Delete(ctx, WatermarkKey); err != nil {
		return fmt.Errorf("clear watermark: %w", err)
	}
	return nil
}

// LastRun returns the most recent run summary, or nil if none.
func (s *State) LastRun(ctx context.Context) (*Summary, error) {
	data, ok, err := s.store.Get(ctx, LastRunKey)
	if err != nil {
		return nil, fmt.Errorf("read last run: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("decode last run: %w", err)
	}
	return &sum, nil
}

// SaveRun stores sum as the last run summary.
func (s *State) SaveRun(ctx context.Context, sum *Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := s.store.Put(ctx, LastRunKey, data); err != nil {
		return fmt.Errorf("write last run: %w", err)
	}
	return nil
}
