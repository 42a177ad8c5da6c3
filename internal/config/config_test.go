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

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
mail_source:
  base_url: ${BRIDGE_URL}
  unified_folder: All Mail
  exclusion_folders: [Spam, Trash, Junk]
  limit: 200
  primary_timeout: 90s
  exclusion_timeout: 10s
  health_timeout: 5s
  exclude_senders: [me@mobicycle.example]
  requests_per_second: 2.5
  oauth:
    token_url: https://auth.example/token
    client_id: pipeline
    client_secret: ${BRIDGE_SECRET}
    scopes: [mail.read]
storage:
  backend: postgres
  url: postgres://localhost/mail
  raw_store: RAW
  matched_store: MATCHED
  state_store: STATE
rules:
  path: /etc/mailpipe/rules.yaml
triage:
  store: MATCHED
  auto_apply: true
run_lock:
  enabled: true
  ttl: 2m
redis:
  url: redis://localhost:6379/1
  queues:
    triage: casework
poll_interval: 10m
port: 9090
log_level: debug
`

func TestParse_FullFile(t *testing.T) {
	t.Setenv("BRIDGE_URL", "http://bridge.internal:4000")
	t.Setenv("BRIDGE_SECRET", "s3cret")

	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ms := cfg.MailSource
	if ms.BaseURL != "http://bridge.internal:4000" || ms.OAuth.ClientSecret != "s3cret" {
		t.Errorf("env expansion failed: %+v", ms)
	}
	if ms.Limit != 200 || ms.PrimaryTimeout != 90*time.Second || ms.ExclusionTimeout != 10*time.Second {
		t.Errorf("mail source = %+v", ms)
	}
	if ms.HealthTimeout != 5*time.Second {
		t.Errorf("health timeout = %v", ms.HealthTimeout)
	}
	if len(ms.ExclusionFolders) != 3 || ms.RequestsPerSecond != 2.5 || !ms.OAuth.Enabled() {
		t.Errorf("mail source = %+v", ms)
	}
	if cfg.Storage.Backend != BackendPostgres || cfg.Storage.RawStore != "RAW" || cfg.Storage.StateStore != "STATE" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.RulesPath != "/etc/mailpipe/rules.yaml" || !cfg.Triage.AutoApply || cfg.Triage.Store != "MATCHED" {
		t.Errorf("rules/triage = %q %+v", cfg.RulesPath, cfg.Triage)
	}
	if !cfg.RunLock.Enabled || cfg.RunLock.TTL != 2*time.Minute {
		t.Errorf("run lock = %+v", cfg.RunLock)
	}
	if cfg.TriageQueue != "casework" || cfg.PollInterval != 10*time.Minute || cfg.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}

func TestParse_Defaults(t *testing.T) {
	for _, k := range []string{"STORAGE_BACKEND", "POLL_INTERVAL", "PORT", "LOG_LEVEL", "TRIAGE_QUEUE", "AUTO_APPLY", "REDIS_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Parse([]byte("mail_source:\n  base_url: http://localhost:4000\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.PollInterval != 5*time.Minute || cfg.Port != 8080 || cfg.TriageQueue != "triage" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Triage.AutoApply {
		t.Error("auto_apply should default to false")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}

func TestParse_EnvFallbacks(t *testing.T) {
	t.Setenv("MAIL_SOURCE_URL", "http://env-bridge:4000")
	t.Setenv("STORAGE_BACKEND", "SQLITE")
	t.Setenv("STORAGE_PATH", "/var/lib/mailpipe/kv.db")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("PORT", "9999")
	t.Setenv("AUTO_APPLY", "true")

	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MailSource.BaseURL != "http://env-bridge:4000" || cfg.Storage.Backend != BackendSQLite {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Storage.Path != "/var/lib/mailpipe/kv.db" || cfg.PollInterval != 30*time.Second || cfg.Port != 9999 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Triage.AutoApply {
		t.Error("AUTO_APPLY not applied")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		MailSource: MailSourceConfig{
			BaseURL:       "not a url",
			Limit:         -1,
			HealthTimeout: -time.Second,
			OAuth:         OAuthConfig{ClientID: "only-id"},
		},
		Storage:  StorageConfig{Backend: "dynamo"},
		RunLock:  RunLockConfig{Enabled: true},
		Port:     70000,
		LogLevel: "chatty",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		"base_url",
		"limit",
		"timeouts",
		"oauth",
		`unknown storage backend "dynamo"`,
		"run_lock",
		"poll_interval",
		"port 70000",
		"log_level",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	base := func(backend string) *Config {
		return &Config{
			MailSource:   MailSourceConfig{BaseURL: "http://localhost:4000"},
			Storage:      StorageConfig{Backend: backend},
			PollInterval: time.Minute,
			Port:         8080,
			LogLevel:     "info",
		}
	}

	tests := []struct {
		backend string
		mutate  func(*Config)
		wantErr bool
	}{
		{BackendMemory, nil, false},
		{BackendRedis, nil, true},
		{BackendRedis, func(c *Config) { c.RedisURL = "redis://localhost:6379" }, false},
		{BackendPostgres, nil, true},
		{BackendPostgres, func(c *Config) { c.Storage.URL = "postgres://localhost/db" }, false},
		{BackendSQLite, nil, true},
		{BackendSQLite, func(c *Config) { c.Storage.Path = "kv.db" }, false},
	}
	for i, tt := range tests {
		cfg := base(tt.backend)
		if tt.mutate != nil {
			tt.mutate(cfg)
		}
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("case %d (%s): err = %v, wantErr %v", i, tt.backend, err, tt.wantErr)
		}
	}
}

func TestStorageRedisURL(t *testing.T) {
	cfg := &Config{RedisURL: "redis://shared"}
	if got := cfg.StorageRedisURL(); got != "redis://shared" {
		t.Errorf("got %q", got)
	}
	cfg.Storage.URL = "redis://kv"
	if got := cfg.StorageRedisURL(); got != "redis://kv" {
		t.Errorf("got %q", got)
	}
}

func TestLoad_FromConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mail_source:\n  base_url: http://localhost:4000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
