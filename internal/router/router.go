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

// Package router classifies retrieved messages and writes them to the raw,
// matched and per-category stores.
//
// Every message is written to the raw store first. A message that matches
// at least one rule is then written to the matched store and to each of its
// category stores. All writes are unconditional upserts under the key from
// format.Key, so re-routing the same message converges on the same state.
// The exception is a message without a usable date: the watermark cannot
// filter it, so it is routed only if its key is not yet in the raw store.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/format"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/rules"
)

// Default names of the non-category stores.
const (
	DefaultRawStore     = "EMAIL_RAW"
	DefaultMatchedStore = "EMAIL_MATCHED"
)

// ErrUnroutedCategory is returned by New when a rule names a category with
// no registered store.
var ErrUnroutedCategory = errors.New("rule category has no store")

// Stats counts the writes of one Route call.
type Stats struct {
	RawStored     int            `json:"rawStored"`
	MatchedStored int            `json:"filteredStored"`
	PerCategory   map[string]int `json:"routeStats"`
	// UndatedSeen counts undated messages already stored by an earlier pass.
	UndatedSeen int `json:"undatedSeen,omitempty"`
}

// Router writes messages to their stores.
type Router struct {
	rules      []rules.Rule
	raw        kv.Store
	matched    kv.Store
	categories map[string]kv.Store
	now        func() time.Time
}

// Config holds the configuration for the router.
type Config struct {
	Rules        []rules.Rule
	Registry     *kv.Registry
	RawStore     string
	MatchedStore string
	// Now stamps StoredAt. Defaults to time.Now.
	Now func() time.Time
}

// New resolves every store the rule set can route to. It fails if any is
// missing, so routing never discovers an unbound category mid-pass.
func New(cfg Config) (*Router, error) {
	rawName := cfg.RawStore
	if rawName == "" {
		rawName = DefaultRawStore
	}
	matchedName := cfg.MatchedStore
	if matchedName == "" {
		matchedName = DefaultMatchedStore
	}

	raw, err := cfg.Registry.Store(rawName)
	if err != nil {
		return nil, fmt.Errorf("raw store: %w", err)
	}
	matched, err := cfg.Registry.Store(matchedName)
	if err != nil {
		return nil, fmt.Errorf("matched store: %w", err)
	}

	var missing []error
	categories := make(map[string]kv.Store)
	for _, name := range rules.Categories(cfg.Rules) {
		s, err := cfg.Registry.Store(name)
		if err != nil {
			missing = append(missing, fmt.Errorf("%w: %s", ErrUnroutedCategory, name))
			continue
		}
		categories[name] = s
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Router{
		rules:      cfg.Rules,
		raw:        raw,
		matched:    matched,
		categories: categories,
		now:        now,
	}, nil
}

// Route stores msgs in order. The first write error stops routing and is
// returned with the key of the failing message; earlier writes stay in
// place and are overwritten identically when the pass is retried.
func (r *Router) Route(ctx context.Context, msgs []models.Message) (*Stats, error) {
	stats := &Stats{PerCategory: make(map[string]int)}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key := format.Key(msg.From, msg.Date, msg.MessageID)
		if msg.DateUnknown {
			_, exists, err := r.raw.Get(ctx, key)
			if err != nil {
				return stats, fmt.Errorf("check raw %s: %w", key, err)
			}
			if exists {
				stats.UndatedSeen++
				continue
			}
		}
		storedAt := r.now().UTC()

		if err := r.put(ctx, r.raw, key, models.NewStoredRecord(msg, nil, storedAt)); err != nil {
			return stats, fmt.Errorf("store raw %s: %w", key, err)
		}
		stats.RawStored++

		cls := rules.Classify(msg, r.rules)
		if !cls.Matched {
			slog.Debug("message matched no category", "key", key, "message_id", msg.MessageID)
			continue
		}

		rec := models.NewStoredRecord(msg, cls.Categories, storedAt)
		if err := r.put(ctx, r.matched, key, rec); err != nil {
			return stats, fmt.Errorf("store matched %s: %w", key, err)
		}
		stats.MatchedStored++

		for _, cat := range cls.Categories {
			if err := r.put(ctx, r.categories[cat], key, rec); err != nil {
				return stats, fmt.Errorf("store %s %s: %w", cat, key, err)
			}
			stats.PerCategory[cat]++
		}

		slog.Debug("message routed",
			"key", key,
			"message_id", msg.MessageID,
			"categories", cls.Categories,
		)
	}

	slog.Info("routing complete",
		"raw_stored", stats.RawStored,
		"matched_stored", stats.MatchedStored,
		"categories", len(stats.PerCategory),
	)

	return stats, nil
}

func (r *Router) put(ctx context.Context, s kv.Store, key string, rec models.StoredRecord) error {
	data, err := format.Encode(rec)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, data)
}
