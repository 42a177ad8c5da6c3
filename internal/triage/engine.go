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

package triage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/format"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
)

// Engine scans stores for pending records and applies decisions.
type Engine struct {
	registry *kv.Registry
	policy   Policy
	now      func() time.Time
}

// EngineConfig holds the configuration for the triage engine.
type EngineConfig struct {
	Registry *kv.Registry
	// Policy defaults to DefaultPolicy().
	Policy *Policy
	Now    func() time.Time
}

// NewEngine creates a triage engine.
func NewEngine(cfg EngineConfig) *Engine {
	p := DefaultPolicy()
	if cfg.Policy != nil {
		p = *cfg.Policy
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{registry: cfg.Registry, policy: p, now: now}
}

// ApplyResult counts the outcome of Apply or CloseNoAction.
type ApplyResult struct {
	Triaged int `json:"triaged"`
	Closed  int `json:"closed"`
	Skipped int `json:"skipped"`

	// Written lists, in decision order, the keys whose record was actually
	// updated. Skipped keys are absent.
	Written []string `json:"-"`
}

// Scan returns a decision for every pending record in the named store,
// ordered by key. Records that do not decode are logged and skipped. Scan
// never writes.
func (e *Engine) Scan(ctx context.Context, store string) ([]Decision, error) {
	s, err := e.registry.Store(store)
	if err != nil {
		return nil, err
	}

	var decisions []Decision
	err = kv.Walk(ctx, s, "", func(key string) error {
		data, ok, err := s.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		if !ok {
			return nil
		}
		rec, err := format.Decode(data)
		if err != nil {
			slog.Warn("skipping malformed record",
				"store", store,
				"key", key,
				"error", err,
			)
			return nil
		}
		if rec.Status != models.StatusPending {
			return nil
		}
		if len(rec.Namespaces) == 0 {
			rec.Namespaces = []string{store}
		}
		decisions = append(decisions, e.policy.Determine(key, rec))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", store, err)
	}

	sort.Slice(decisions, func(i, j int) bool { return decisions[i].Key < decisions[j].Key })

	counts := CountByLevel(decisions)
	slog.Info("triage scan complete",
		"store", store,
		"pending", counts.Total,
		"no_action", counts.NoAction,
		"simple", counts.Simple,
		"complex", counts.Complex,
	)
	return decisions, nil
}

// Apply writes decisions back to the named store. NO_ACTION records are
// closed; the rest become triaged. A record that has disappeared or is no
// longer pending is skipped. Only status fields change.
func (e *Engine) Apply(ctx context.Context, store string, decisions []Decision) (ApplyResult, error) {
	return e.apply(ctx, store, decisions, false)
}

// CloseNoAction closes the NO_ACTION decisions and leaves the others
// pending.
func (e *Engine) CloseNoAction(ctx context.Context, store string, decisions []Decision) (ApplyResult, error) {
	return e.apply(ctx, store, decisions, true)
}

func (e *Engine) apply(ctx context.Context, store string, decisions []Decision, closeOnly bool) (ApplyResult, error) {
	var res ApplyResult
	s, err := e.registry.Store(store)
	if err != nil {
		return res, err
	}

	for _, d := range decisions {
		level := d.Level.Normalize()
		if closeOnly && level != models.LevelNoAction {
			continue
		}

		data, ok, err := s.Get(ctx, d.Key)
		if err != nil {
			return res, fmt.Errorf("get %s/%s: %w", store, d.Key, err)
		}
		if !ok {
			res.Skipped++
			continue
		}
		rec, err := format.Decode(data)
		if err != nil || rec.Status != models.StatusPending {
			res.Skipped++
			continue
		}

		now := e.now().UTC()
		rec.TriageLevel = level
		rec.TriageReason = d.Reason
		rec.TriageSuggestedAction = d.SuggestedAction
		rec.TriagedAt = &now
		if level == models.LevelNoAction {
			rec.Status = models.StatusClosed
			rec.ClosedAt = &now
		} else {
			rec.Status = models.StatusTriaged
		}

		out, err := format.Encode(rec)
		if err != nil {
			return res, err
		}
		if err := s.Put(ctx, d.Key, out); err != nil {
			return res, fmt.Errorf("put %s/%s: %w", store, d.Key, err)
		}

		if rec.Status == models.StatusClosed {
			res.Closed++
		} else {
			res.Triaged++
		}
		res.Written = append(res.Written, d.Key)
	}

	slog.Info("triage decisions applied",
		"store", store,
		"triaged", res.Triaged,
		"closed", res.Closed,
		"skipped", res.Skipped,
	)
	return res, nil
}
