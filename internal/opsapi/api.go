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

// Package opsapi serves the operator HTTP surface of the pipeline service:
// health, metrics, on-demand runs and run state.
package opsapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/pipeline"
)

// RunService triggers a pass. Implemented by pipeline.Scheduler.
type RunService interface {
	RunOnce(ctx context.Context) (*pipeline.Summary, error)
}

// StateReader exposes persisted run state. Implemented by pipeline.State.
type StateReader interface {
	Watermark(ctx context.Context) (*time.Time, error)
	LastRun(ctx context.Context) (*pipeline.Summary, error)
}

// Check is a named dependency check for /health.
type Check func(ctx context.Context) error

// API holds dependencies for HTTP handlers.
type API struct {
	runner   RunService
	state    StateReader
	gatherer prometheus.Gatherer
	checks   map[string]Check
}

// Config holds the API dependencies. Gatherer and Checks are optional.
type Config struct {
	Runner   RunService
	State    StateReader
	Gatherer prometheus.Gatherer
	Checks   map[string]Check
}

// New creates the API.
func New(cfg Config) *API {
	if cfg.Runner == nil || cfg.State == nil {
		panic("opsapi: runner and state are required")
	}
	return &API{
		runner:   cfg.Runner,
		state:    cfg.State,
		gatherer: cfg.Gatherer,
		checks:   cfg.Checks,
	}
}

// Handler returns a router with all endpoints mounted.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes attaches the endpoints to r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/health", a.handleHealth)
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/run", a.handleRun)
	r.Get("/last-run", a.handleLastRun)
	r.Get("/watermark", a.handleWatermark)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := a.checks[name](ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "healthy", "checks": results}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	writeJSON(w, status, body)
}

func (a *API) handleRun(w http.ResponseWriter, r *http.Request) {
	// A pass runs to completion even if the caller disconnects.
	sum, err := a.runner.RunOnce(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil && sum == nil:
		slog.Error("on-demand run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, sum)
	default:
		writeJSON(w, http.StatusOK, sum)
	}
}

func (a *API) handleLastRun(w http.ResponseWriter, r *http.Request) {
	sum, err := a.state.LastRun(r.Context())
	if err != nil {
		slog.Error("failed to read last run", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if sum == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run recorded"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) handleWatermark(w http.ResponseWriter, r *http.Request) {
	wm, err := a.state.Watermark(r.Context())
	if err != nil {
		slog.Error("failed to read watermark", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]*time.Time{"watermark": wm})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
