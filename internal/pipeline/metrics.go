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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/retriever"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/router"
)

// Metrics holds Prometheus metrics for pipeline runs.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	RunsSkippedBusy    prometheus.Counter
	MessagesFetched    prometheus.Counter
	MessagesFiltered   *prometheus.CounterVec
	MessagesInbound    prometheus.Counter
	RecordsStored      *prometheus.CounterVec
	CategoryRouted     *prometheus.CounterVec
	TriageDecisions    *prometheus.CounterVec
	TriageHandedOff    prometheus.Counter
	WatermarkTimestamp prometheus.Gauge
	LastRunTimestamp   *prometheus.GaugeVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailpipe_runs_total",
			Help: "Total pipeline runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailpipe_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"status"}),
		RunsSkippedBusy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailpipe_runs_skipped_busy_total",
			Help: "Passes not started because another pass held the lock.",
		}),
		MessagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailpipe_messages_fetched_total",
			Help: "Messages listed from the unified folder.",
		}),
		MessagesFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailpipe_messages_filtered_total",
			Help: "Messages dropped during retrieval by reason.",
		}, []string{"reason"}),
		MessagesInbound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailpipe_messages_inbound_total",
			Help: "Messages that survived retrieval filtering.",
		}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailpipe_records_stored_total",
			Help: "Records written by the router by store kind.",
		}, []string{"kind"}),
		CategoryRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailpipe_category_routed_total",
			Help: "Records written to each category store.",
		}, []string{"category"}),
		TriageDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailpipe_triage_decisions_total",
			Help: "Triage decisions produced by scans, by level.",
		}, []string{"level"}),
		TriageHandedOff: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailpipe_triage_handed_off_total",
			Help: "Triaged records handed to downstream workers.",
		}),
		WatermarkTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailpipe_watermark_timestamp_seconds",
			Help: "Unix time of the persisted retrieval watermark.",
		}),
		LastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailpipe_last_run_timestamp_seconds",
			Help: "Unix time of the last run by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunsSkippedBusy,
		m.MessagesFetched,
		m.MessagesFiltered,
		m.MessagesInbound,
		m.RecordsStored,
		m.CategoryRouted,
		m.TriageDecisions,
		m.TriageHandedOff,
		m.WatermarkTimestamp,
		m.LastRunTimestamp,
	)

	return m
}

// Hooks returns pipeline Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnRunComplete: func(sum *Summary, duration time.Duration) {
			status := string(sum.Status)
			m.RunsTotal.WithLabelValues(status).Inc()
			m.RunDuration.WithLabelValues(status).Observe(duration.Seconds())
			m.LastRunTimestamp.WithLabelValues(status).Set(float64(sum.Timestamp.Unix()))
			if sum.Watermark != nil {
				m.WatermarkTimestamp.Set(float64(sum.Watermark.Unix()))
			}
		},
		OnRetrieval: func(res *retriever.Result) {
			m.MessagesFetched.Add(float64(res.Fetched))
			m.MessagesFiltered.WithLabelValues("spam_trash").Add(float64(res.SpamTrashExcluded))
			m.MessagesFiltered.WithLabelValues("own_sent").Add(float64(res.OwnSent))
			m.MessagesFiltered.WithLabelValues("older_than_cutoff").Add(float64(res.OlderThanCutoff))
			m.MessagesFiltered.WithLabelValues("duplicate").Add(float64(res.Duplicates))
			m.MessagesInbound.Add(float64(res.Inbound))
		},
		OnRouted: func(stats *router.Stats) {
			m.RecordsStored.WithLabelValues("raw").Add(float64(stats.RawStored))
			m.RecordsStored.WithLabelValues("matched").Add(float64(stats.MatchedStored))
			for cat, n := range stats.PerCategory {
				m.CategoryRouted.WithLabelValues(cat).Add(float64(n))
			}
		},
		OnTriage: func(step *Step3) {
			m.TriageDecisions.WithLabelValues("NO_ACTION").Add(float64(step.NoAction))
			m.TriageDecisions.WithLabelValues("SIMPLE").Add(float64(step.Simple))
			m.TriageDecisions.WithLabelValues("COMPLEX").Add(float64(step.Complex))
			m.TriageHandedOff.Add(float64(step.HandedOff))
		},
	}
}

// OnSkip returns a callback for SchedulerConfig.OnSkip.
func (m *Metrics) OnSkip() func() {
	return m.RunsSkippedBusy.Inc
}
