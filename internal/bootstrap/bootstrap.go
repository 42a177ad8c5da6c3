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

// Package bootstrap wires configuration into a ready pipeline: storage
// backend and store registry, rules, mail source client, router, triage
// engine, hand-off publisher, metrics and scheduler. Both the service and
// the operator CLI build through it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/config"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/memstore"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/pgstore"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/redisstore"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/kv/sqlitestore"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/mailsource"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/opsapi"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/pipeline"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/queue"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/retriever"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/router"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/rules"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/runlock"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/triage"
)

// DefaultStateStore holds the watermark and last run summary.
const DefaultStateStore = "PIPELINE_STATE"

// App is a fully wired pipeline and its dependencies.
type App struct {
	Config    *config.Config
	Rules     []rules.Rule
	Registry  *kv.Registry
	Source    *mailsource.Client
	Retriever *retriever.Retriever
	Router    *router.Router
	Triage    *triage.Engine
	Pipeline  *pipeline.Pipeline
	Scheduler *pipeline.Scheduler
	State     *pipeline.State
	Metrics   *pipeline.Metrics

	// RawStore, MatchedStore and TriageStore are the resolved store names.
	RawStore     string
	MatchedStore string
	TriageStore  string

	// Checks are dependency checks for the ops health endpoint.
	Checks map[string]opsapi.Check

	closers []func() error
}

// Options tune Build.
type Options struct {
	// Registerer receives pipeline metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// HTTPClient overrides the mail source HTTP client, including OAuth.
	HTTPClient *http.Client
}

// Build wires an App from cfg. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	app := &App{
		Config:       cfg,
		Checks:       make(map[string]opsapi.Check),
		RawStore:     orDefault(cfg.Storage.RawStore, router.DefaultRawStore),
		MatchedStore: orDefault(cfg.Storage.MatchedStore, router.DefaultMatchedStore),
	}
	app.TriageStore = orDefault(cfg.Triage.Store, app.MatchedStore)
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.Rules, err = loadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]*redis.Client)
	redisFor := func(url string) (*redis.Client, error) {
		if c, ok := clients[url]; ok {
			return c, nil
		}
		opt, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		c := redis.NewClient(opt)
		clients[url] = c
		app.closers = append(app.closers, c.Close)
		app.Checks["redis"] = func(ctx context.Context) error { return c.Ping(ctx).Err() }
		return c, nil
	}

	backend, err := openBackend(ctx, app, redisFor)
	if err != nil {
		return nil, err
	}

	stateStore := orDefault(cfg.Storage.StateStore, DefaultStateStore)
	app.Registry = kv.NewRegistry()
	app.Registry.RegisterAll(backend, app.RawStore, app.MatchedStore, stateStore)
	app.Registry.RegisterAll(backend, rules.Categories(app.Rules)...)
	if !app.Registry.Has(app.TriageStore) {
		return nil, fmt.Errorf("triage store %q: %w", app.TriageStore, kv.ErrUnknownStore)
	}
	stateKV, err := app.Registry.Store(stateStore)
	if err != nil {
		return nil, err
	}
	app.State = pipeline.NewState(stateKV)

	httpClient := opts.HTTPClient
	if httpClient == nil && cfg.MailSource.OAuth.Enabled() {
		creds := &clientcredentials.Config{
			ClientID:     cfg.MailSource.OAuth.ClientID,
			ClientSecret: cfg.MailSource.OAuth.ClientSecret,
			TokenURL:     cfg.MailSource.OAuth.TokenURL,
			Scopes:       cfg.MailSource.OAuth.Scopes,
		}
		// The token source outlives ctx, so it gets its own background context.
		httpClient = creds.Client(context.Background())
	}
	app.Source = mailsource.NewClient(mailsource.ClientConfig{
		HTTPClient:        httpClient,
		BaseURL:           cfg.MailSource.BaseURL,
		RequestsPerSecond: cfg.MailSource.RequestsPerSecond,
	})

	app.Retriever = retriever.New(retriever.Config{
		Source:           app.Source,
		UnifiedFolder:    cfg.MailSource.UnifiedFolder,
		ExclusionFolders: cfg.MailSource.ExclusionFolders,
		Limit:            cfg.MailSource.Limit,
		PrimaryTimeout:   cfg.MailSource.PrimaryTimeout,
		ExclusionTimeout: cfg.MailSource.ExclusionTimeout,
		ExcludeSenders:   cfg.MailSource.ExcludeSenders,
	})

	app.Router, err = router.New(router.Config{
		Rules:        app.Rules,
		Registry:     app.Registry,
		RawStore:     app.RawStore,
		MatchedStore: app.MatchedStore,
	})
	if err != nil {
		return nil, err
	}

	app.Triage = triage.NewEngine(triage.EngineConfig{Registry: app.Registry})

	pcfg := pipeline.Config{
		Health:        app.Source,
		HealthTimeout: cfg.MailSource.HealthTimeout,
		Fetcher:       app.Retriever,
		Router:        app.Router,
		Triager:       app.Triage,
		State:         app.State,
		TriageStore:   app.TriageStore,
		AutoApply:     cfg.Triage.AutoApply,
	}
	if opts.Registerer != nil {
		app.Metrics = pipeline.NewMetrics(opts.Registerer)
		pcfg.Hooks = app.Metrics.Hooks()
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = redisFor(cfg.RedisURL); err != nil {
			return nil, err
		}
		pcfg.Publisher = queue.NewPublisher(rdb, cfg.TriageQueue)
	}
	app.Pipeline = pipeline.New(pcfg)

	scfg := pipeline.SchedulerConfig{
		Runner:   app.Pipeline,
		Interval: cfg.PollInterval,
	}
	if app.Metrics != nil {
		scfg.OnSkip = app.Metrics.OnSkip()
	}
	if cfg.RunLock.Enabled {
		if rdb == nil {
			return nil, errors.New("run lock needs redis.url")
		}
		scfg.Locker = runlock.New(rdb, cfg.RunLock.Key, cfg.RunLock.TTL)
	}
	app.Scheduler = pipeline.NewScheduler(scfg)

	slog.Info("pipeline wired",
		"backend", cfg.Storage.Backend,
		"rules", len(app.Rules),
		"stores", len(app.Registry.Names()),
		"triage_store", app.TriageStore,
		"auto_apply", cfg.Triage.AutoApply,
		"handoff", pcfg.Publisher != nil,
		"run_lock", scfg.Locker != nil,
	)
	return app, nil
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, app *App, redisFor func(string) (*redis.Client, error)) (kv.Backend, error) {
	cfg := app.Config
	switch cfg.Storage.Backend {
	case config.BackendMemory, "":
		slog.Warn("using in-memory storage, state is lost on exit")
		return memstore.NewBackend(), nil

	case config.BackendRedis:
		rdb, err := redisFor(cfg.StorageRedisURL())
		if err != nil {
			return nil, err
		}
		return redisstore.NewBackend(rdb, cfg.Storage.KeyPrefix), nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.URL)
		if err != nil {
			return nil, fmt.Errorf("create Postgres pool: %w", err)
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		app.Checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
		b, err := pgstore.NewBackend(ctx, pool)
		if err != nil {
			return nil, err
		}
		return b, nil

	case config.BackendSQLite:
		b, err := sqlitestore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, b.Close)
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func loadRules(path string) ([]rules.Rule, error) {
	if path == "" {
		return rules.Default(), nil
	}
	rs, err := rules.LoadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("rules loaded", "path", path, "rules", len(rs))
	return rs, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
