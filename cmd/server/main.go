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

// Case mail pipeline service
//
// Entry point for the long-running pipeline. It:
//  1. Loads configuration from config.yaml
//  2. Opens the storage backend and binds every store the rules need
//  3. Wires retrieval, routing, triage and hand-off into one pipeline
//  4. Runs a pass immediately and then on every poll interval
//  5. Serves health, metrics and on-demand run endpoints
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/bootstrap"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/config"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/opsapi"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting case mail pipeline",
		"mail_source", cfg.MailSource.BaseURL,
		"backend", cfg.Storage.Backend,
		"poll_interval", cfg.PollInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Pipeline ---
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Registerer: reg})
	if err != nil {
		slog.Error("failed to wire pipeline", "error", err)
		os.Exit(1)
	}

	app.Scheduler.Start(ctx)

	// --- Ops Server ---
	api := opsapi.New(opsapi.Config{
		Runner:   app.Scheduler,
		State:    app.State,
		Gatherer: reg,
		Checks:   app.Checks,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     api.Handler(),
		ReadTimeout: 10 * time.Second,
		// POST /run holds the connection for a whole pass.
		WriteTimeout: 5 * time.Minute,
	}

	// --- Graceful Shutdown ---
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel() // Stop the scheduler loop

		app.Scheduler.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		if err := app.Close(); err != nil {
			slog.Error("failed to close backends", "error", err)
		}
	}()

	slog.Info("ops server listening", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("case mail pipeline stopped")
}
