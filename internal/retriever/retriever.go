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

// Package retriever pulls new inbound messages from the mail source.
//
// One Fetch call:
//  1. collects the message IDs of the exclusion folders (Spam, Trash)
//  2. lists the unified folder (All Mail)
//  3. drops excluded IDs, messages not newer than the watermark, and
//     repeated IDs (first occurrence wins)
//  4. reports the newest surviving date as the next watermark
//
// Messages without a usable date bypass the watermark cutoff and never
// move it; the router deduplicates them by key instead.
//
// The retriever never writes anything; persisting the watermark is the
// caller's job.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
)

// Default folder names and timeouts.
const (
	DefaultUnifiedFolder    = "All Mail"
	DefaultPrimaryTimeout   = 60 * time.Second
	DefaultExclusionTimeout = 15 * time.Second
)

// DefaultExclusionFolders are listed before the unified folder.
var DefaultExclusionFolders = []string{"Spam", "Trash"}

// Source lists the messages of a mailbox folder. Implemented by
// mailsource.Client.
type Source interface {
	FetchFolder(ctx context.Context, folder string, limit int) ([]models.Message, error)
}

// Result is the outcome of one Fetch.
type Result struct {
	Fetched           int `json:"fetched"`
	SpamTrashExcluded int `json:"spamTrashExcluded"`
	OwnSent           int `json:"ownSent"`
	OlderThanCutoff   int `json:"olderThanCutoff"`
	Duplicates        int `json:"duplicates"`
	Undated           int `json:"undated"`
	Inbound           int `json:"inbound"`

	Messages []models.Message `json:"messages,omitempty"`

	// NewWatermark is the newest known Date in Messages, nil when none.
	NewWatermark *time.Time `json:"newWatermark,omitempty"`
}

// Retriever fetches and filters new messages.
type Retriever struct {
	source           Source
	unifiedFolder    string
	exclusionFolders []string
	limit            int
	primaryTimeout   time.Duration
	exclusionTimeout time.Duration
	excludeSenders   []string
}

// Config holds the configuration for the retriever.
type Config struct {
	Source           Source
	UnifiedFolder    string
	ExclusionFolders []string
	// Limit caps the unified folder listing. Zero leaves it to the source.
	Limit            int
	PrimaryTimeout   time.Duration
	ExclusionTimeout time.Duration
	// ExcludeSenders drops messages whose sender contains any of these
	// addresses, typically the mailbox owner's own.
	ExcludeSenders []string
}

// New creates a retriever, filling unset fields with defaults.
func New(cfg Config) *Retriever {
	r := &Retriever{
		source:           cfg.Source,
		unifiedFolder:    cfg.UnifiedFolder,
		exclusionFolders: cfg.ExclusionFolders,
		limit:            cfg.Limit,
		primaryTimeout:   cfg.PrimaryTimeout,
		exclusionTimeout: cfg.ExclusionTimeout,
	}
	if r.unifiedFolder == "" {
		r.unifiedFolder = DefaultUnifiedFolder
	}
	if r.exclusionFolders == nil {
		r.exclusionFolders = DefaultExclusionFolders
	}
	if r.primaryTimeout <= 0 {
		r.primaryTimeout = DefaultPrimaryTimeout
	}
	if r.exclusionTimeout <= 0 {
		r.exclusionTimeout = DefaultExclusionTimeout
	}
	for _, s := range cfg.ExcludeSenders {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			r.excludeSenders = append(r.excludeSenders, s)
		}
	}
	return r
}

// Fetch returns the messages newer than watermark. A nil watermark means
// no previous run. An exclusion folder failure is logged and treated as
// empty; a unified folder failure is returned.
func (r *Retriever) Fetch(ctx context.Context, watermark *time.Time) (*Result, error) {
	excluded := r.exclusionSet(ctx)

	primaryCtx, cancel := context.WithTimeout(ctx, r.primaryTimeout)
	all, err := r.source.FetchFolder(primaryCtx, r.unifiedFolder, r.limit)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", r.unifiedFolder, err)
	}

	res := &Result{Fetched: len(all)}
	seen := make(map[string]struct{}, len(all))

	for _, msg := range all {
		if _, ok := excluded[msg.MessageID]; ok {
			res.SpamTrashExcluded++
			continue
		}
		if r.isOwnSent(msg.From) {
			res.OwnSent++
			continue
		}
		if !msg.DateUnknown && watermark != nil && !msg.Date.After(*watermark) {
			res.OlderThanCutoff++
			continue
		}
		if _, dup := seen[msg.MessageID]; dup {
			res.Duplicates++
			continue
		}
		seen[msg.MessageID] = struct{}{}
		res.Messages = append(res.Messages, msg)

		if msg.DateUnknown {
			res.Undated++
			continue
		}
		if res.NewWatermark == nil || msg.Date.After(*res.NewWatermark) {
			d := msg.Date
			res.NewWatermark = &d
		}
	}
	res.Inbound = len(res.Messages)

	slog.Info("retrieval complete",
		"fetched", res.Fetched,
		"spam_trash_excluded", res.SpamTrashExcluded,
		"own_sent", res.OwnSent,
		"older_than_cutoff", res.OlderThanCutoff,
		"duplicates", res.Duplicates,
		"undated", res.Undated,
		"inbound", res.Inbound,
	)

	return res, nil
}

// exclusionSet lists every exclusion folder and collects message IDs.
func (r *Retriever) exclusionSet(ctx context.Context) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, folder := range r.exclusionFolders {
		folderCtx, cancel := context.WithTimeout(ctx, r.exclusionTimeout)
		msgs, err := r.source.FetchFolder(folderCtx, folder, 0)
		cancel()
		if err != nil {
			slog.Warn("exclusion folder fetch failed, continuing without it",
				"folder", folder,
				"error", err,
			)
			continue
		}
		for _, m := range msgs {
			if m.MessageID != "" {
				ids[m.MessageID] = struct{}{}
			}
		}
	}
	return ids
}

func (r *Retriever) isOwnSent(from string) bool {
	if len(r.excludeSenders) == 0 {
		return false
	}
	from = strings.ToLower(from)
	for _, s := range r.excludeSenders {
		if strings.Contains(from, s) {
			return true
		}
	}
	return false
}
