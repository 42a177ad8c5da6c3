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

// Package pipeline runs one ingestion pass end to end: health check,
// retrieval since the watermark, routing, watermark persistence, and a
// triage scan. It also provides the periodic scheduler and its metrics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/retriever"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/router"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/triage"
)

// Status is the outcome of a run.
type Status string

const (
	StatusComplete Status = "complete"
	StatusError    Status = "error"
	StatusSkipped  Status = "skipped"
)

// DefaultHealthTimeout bounds the mail source health check.
const DefaultHealthTimeout = 15 * time.Second

// Fetcher is implemented by retriever.Retriever.
type Fetcher interface {
	Fetch(ctx context.Context, watermark *time.Time) (*retriever.Result, error)
}

// Router is implemented by router.Router.
type Router interface {
	Route(ctx context.Context, msgs []models.Message) (*router.Stats, error)
}

// Triager is implemented by triage.Engine.
type Triager interface {
	Scan(ctx context.Context, store string) ([]triage.Decision, error)
	Apply(ctx context.Context, store string, decisions []triage.Decision) (triage.ApplyResult, error)
}

// HealthChecker reports whether the mail source can serve a run. Implemented
// by mailsource.Client.
type HealthChecker interface {
	Health(ctx context.Context) (bool, string)
}

// Publisher hands triaged records to downstream workers. Implemented by
// queue.Publisher.
type Publisher interface {
	PublishDecision(ctx context.Context, store string, d triage.Decision) error
}

// Step1 summarises retrieval.
type Step1 struct {
	Fetched           int `json:"fetched"`
	NewEmails         int `json:"newEmails"`
	SpamTrashExcluded int `json:"spamTrashExcluded"`
	OwnSent           int `json:"ownSent"`
	OlderThanCutoff   int `json:"olderThanCutoff"`
	Duplicates        int `json:"duplicates"`
	Undated           int `json:"undated,omitempty"`
}

// Step3 summarises the triage scan.
type Step3 struct {
	Store     string              `json:"store"`
	Total     int                 `json:"total"`
	NoAction  int                 `json:"noAction"`
	Simple    int                 `json:"simple"`
	Complex   int                 `json:"complex"`
	Applied   *triage.ApplyResult `json:"applied,omitempty"`
	HandedOff int                 `json:"handedOff,omitempty"`
}

// Summary is the persisted record of one run.
type Summary struct {
	RunID     string        `json:"runId"`
	Timestamp time.Time     `json:"timestamp"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Watermark *time.Time    `json:"watermark,omitempty"`
	Step1     *Step1        `json:"step1,omitempty"`
	Step2     *router.Stats `json:"step2,omitempty"`
	Step3     *Step3        `json:"step3,omitempty"`
}

// Hooks observe run outcomes. Nil fields are skipped.
type Hooks struct {
	OnRunComplete func(sum *Summary, duration time.Duration)
	OnRetrieval   func(res *retriever.Result)
	OnRouted      func(stats *router.Stats)
	OnTriage      func(step *Step3)
}

// Pipeline wires the stages of a run.
type Pipeline struct {
	health        HealthChecker
	healthTimeout time.Duration
	fetcher       Fetcher
	router        Router
	triager       Triager
	publisher     Publisher
	state         *State
	triageStore   string
	autoApply     bool
	hooks         Hooks
	now           func() time.Time
}

// Config holds the configuration for a pipeline.
type Config struct {
	// Health is optional; when nil every run proceeds.
	Health HealthChecker
	// HealthTimeout bounds the health check. A check that does not answer
	// in time skips the run. Defaults to DefaultHealthTimeout.
	HealthTimeout time.Duration

	Fetcher   Fetcher
	Router    Router
	Triager   Triager
	Publisher Publisher
	State     *State

	// TriageStore is the store scanned after routing.
	TriageStore string
	// AutoApply writes decisions back and hands triaged records to the
	// publisher. When false the scan is report-only.
	AutoApply bool

	Hooks Hooks
	Now   func() time.Time
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	triageStore := cfg.TriageStore
	if triageStore == "" {
		triageStore = router.DefaultMatchedStore
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	return &Pipeline{
		health:        cfg.Health,
		healthTimeout: healthTimeout,
		fetcher:       cfg.Fetcher,
		router:        cfg.Router,
		triager:       cfg.Triager,
		publisher:     cfg.Publisher,
		state:         cfg.State,
		triageStore:   triageStore,
		autoApply:     cfg.AutoApply,
		hooks:         cfg.Hooks,
		now:           now,
	}
}

// State returns the pipeline's state store wrapper.
func (p *Pipeline) State() *State {
	return p.state
}

// Run executes one pass and persists its summary. The returned error is
// non-nil exactly when the summary status is "error". The watermark is only
// advanced after every routing write succeeded.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := p.now()
	sum := &Summary{
		RunID:     uuid.NewString(),
		Timestamp: start.UTC(),
	}
	log := slog.With("run_id", sum.RunID)

	runErr := p.run(ctx, sum, log)
	if runErr != nil {
		sum.Status = StatusError
		sum.Error = runErr.Error()
		log.Error("pipeline run failed", "error", runErr)
	}

	if err := p.state.SaveRun(ctx, sum); err != nil {
		log.Error("failed to persist run summary", "error", err)
		if runErr == nil {
			sum.Status = StatusError
			sum.Error = err.Error()
			runErr = err
		}
	}

	duration := p.now().Sub(start)
	if p.hooks.OnRunComplete != nil {
		p.hooks.OnRunComplete(sum, duration)
	}

	log.Info("pipeline run finished",
		"status", sum.Status,
		"duration", duration,
	)
	return sum, runErr
}

func (p *Pipeline) run(ctx context.Context, sum *Summary, log *slog.Logger) error {
	if p.health != nil {
		hctx, cancel := context.WithTimeout(ctx, p.healthTimeout)
		ok, reason := p.health.Health(hctx)
		cancel()
		if !ok {
			sum.Status = StatusSkipped
			sum.Reason = reason
			log.Warn("pipeline run skipped", "reason", reason)
			return nil
		}
	}

	watermark, err := p.state.Watermark(ctx)
	if err != nil {
		return err
	}
	sum.Watermark = watermark

	res, err := p.fetcher.Fetch(ctx, watermark)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	sum.Step1 = &Step1{
		Fetched:           res.Fetched,
		NewEmails:         res.Inbound,
		SpamTrashExcluded: res.SpamTrashExcluded,
		OwnSent:           res.OwnSent,
		OlderThanCutoff:   res.OlderThanCutoff,
		Duplicates:        res.Duplicates,
		Undated:           res.Undated,
	}
	if p.hooks.OnRetrieval != nil {
		p.hooks.OnRetrieval(res)
	}

	stats, err := p.router.Route(ctx, res.Messages)
	if stats != nil {
		sum.Step2 = stats
	}
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}
	if p.hooks.OnRouted != nil {
		p.hooks.OnRouted(stats)
	}

	if res.NewWatermark != nil {
		advanced, err := p.state.AdvanceWatermark(ctx, *res.NewWatermark)
		if err != nil {
			return err
		}
		if advanced {
			sum.Watermark = res.NewWatermark
		}
	}

	step3, err := p.triage(ctx, log)
	if err != nil {
		return fmt.Errorf("triage: %w", err)
	}
	sum.Step3 = step3
	if p.hooks.OnTriage != nil {
		p.hooks.OnTriage(step3)
	}

	sum.Status = StatusComplete
	return nil
}

func (p *Pipeline) triage(ctx context.Context, log *slog.Logger) (*Step3, error) {
	decisions, err := p.triager.Scan(ctx, p.triageStore)
	if err != nil {
		return nil, err
	}
	counts := triage.CountByLevel(decisions)
	step := &Step3{
		Store:    p.triageStore,
		Total:    counts.Total,
		NoAction: counts.NoAction,
		Simple:   counts.Simple,
		Complex:  counts.Complex,
	}
	if !p.autoApply || len(decisions) == 0 {
		return step, nil
	}

	applied, err := p.triager.Apply(ctx, p.triageStore, decisions)
	if err != nil {
		return nil, err
	}
	step.Applied = &applied

	if p.publisher == nil {
		return step, nil
	}
	written := make(map[string]bool, len(applied.Written))
	for _, key := range applied.Written {
		written[key] = true
	}
	for _, d := range decisions {
		if d.Level.Normalize() == models.LevelNoAction || !written[d.Key] {
			continue
		}
		if err := p.publisher.PublishDecision(ctx, p.triageStore, d); err != nil {
			log.Error("triage hand-off failed",
				"key", d.Key,
				"level", d.Level,
				"error", err,
			)
			continue
		}
		step.HandedOff++
	}
	return step, nil
}
