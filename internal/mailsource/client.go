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

// Package mailsource is the HTTP client for the mailbox bridge that serves
// folder listings. It speaks the retrieval contract:
//
//	POST {base}/fetch-emails  {"folder": "All Mail", "limit": 500}
//	  -> {"emails": [{"from", "to", "subject", "date", "messageId", "body"}]}
//	GET  {base}/health
//	  -> {"status": "ok", "bridge": "connected"}
package mailsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
)

// ErrUnavailable is returned when the bridge cannot be reached or answers
// with a non-2xx status.
var ErrUnavailable = errors.New("mail source unavailable")

// Client talks to the mailbox bridge.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// ClientConfig holds the configuration for the bridge client.
type ClientConfig struct {
	// HTTPClient defaults to http.DefaultClient. Callers that need OAuth2
	// pass a clientcredentials client here.
	HTTPClient *http.Client
	BaseURL    string

	// RequestsPerSecond caps outbound calls. Zero disables limiting.
	RequestsPerSecond float64
}

// NewClient creates a bridge client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    limiter,
	}
}

type fetchRequest struct {
	Folder string `json:"folder"`
	Limit  int    `json:"limit,omitempty"`
}

// FetchFolder lists the messages of one folder. limit <= 0 leaves the
// bridge default in place. Callers bound the call with ctx.
func (c *Client) FetchFolder(ctx context.Context, folder string, limit int) ([]models.Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(fetchRequest{Folder: folder, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal fetch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fetch-emails", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch folder %q: %v", ErrUnavailable, folder, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("mail source error",
			"folder", folder,
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return nil, fmt.Errorf("%w: folder %q returned HTTP %d", ErrUnavailable, folder, resp.StatusCode)
	}

	msgs, err := parseFolder(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse folder %q: %w", folder, err)
	}

	slog.Debug("folder fetched", "folder", folder, "count", len(msgs))
	return msgs, nil
}

// healthResponse is the bridge's /health payload.
type healthResponse struct {
	Status string `json:"status"`
	Bridge string `json:"bridge"`
}

// Health reports whether the bridge is up and connected to the mailbox.
// The returned reason is empty when healthy.
func (c *Client) Health(ctx context.Context) (bool, string) {
	if err := c.wait(ctx); err != nil {
		return false, err.Error()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("mail source unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("mail source health returned HTTP %d", resp.StatusCode)
	}

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return false, fmt.Sprintf("decode health response: %v", err)
	}
	if h.Status != "ok" {
		return false, fmt.Sprintf("mail source status %q", h.Status)
	}
	if h.Bridge != "" && h.Bridge != "connected" {
		return false, fmt.Sprintf("mailbox bridge %q", h.Bridge)
	}
	return true, ""
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
