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
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRunInProgress is returned by RunOnce when another pass holds the lock.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Runner is implemented by Pipeline.
type Runner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Locker guards passes across processes. Implemented by runlock.Lock.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler runs the pipeline on a fixed interval and on demand, never
// overlapping two passes.
type Scheduler struct {
	runner   Runner
	locker   Locker
	interval time.Duration

	mu     sync.Mutex // held for the duration of a pass
	cancel context.CancelFunc
	wg     sync.WaitGroup
	onSkip func()
}

// SchedulerConfig holds the configuration for the scheduler.
type SchedulerConfig struct {
	Runner   Runner
	Interval time.Duration
	// Locker is optional. Without it passes are only serialised within
	// this process.
	Locker Locker
	// OnSkip is called when a pass is skipped because one is in progress.
	OnSkip func()
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		runner:   cfg.Runner,
		locker:   cfg.Locker,
		interval: cfg.Interval,
		onSkip:   cfg.OnSkip,
	}
}

// RunOnce runs one pass now. It returns ErrRunInProgress if a pass is
// already running here or, with a Locker, anywhere else.
func (s *Scheduler) RunOnce(ctx context.Context) (*Summary, error) {
	if !s.mu.TryLock() {
		s.skipped()
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.skipped()
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release run lock", "error", err)
			}
		}()
	}

	return s.runner.Run(ctx)
}

func (s *Scheduler) skipped() {
	slog.Info("pipeline pass skipped, another is in progress")
	if s.onSkip != nil {
		s.onSkip()
	}
}

// Start runs a pass immediately and then every interval until Stop or ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.tick(loopCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.tick(loopCtx)
			}
		}
	}()

	slog.Info("pipeline scheduler started", "interval", s.interval)
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		slog.Error("scheduled pipeline run failed", "error", err)
	}
}

// Stop cancels the loop and waits for an in-flight pass to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	slog.Info("pipeline scheduler stopped")
}
