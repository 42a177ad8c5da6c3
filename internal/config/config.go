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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "/app/config/config.yaml"

// OAuthConfig enables client-credentials auth against the mail source.
type OAuthConfig struct {
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

// Enabled reports whether any OAuth field is set.
func (o OAuthConfig) Enabled() bool {
	return o.TokenURL != "" || o.ClientID != "" || o.ClientSecret != ""
}

// MailSourceConfig describes the mailbox bridge.
type MailSourceConfig struct {
	BaseURL           string        `yaml:"base_url"`
	UnifiedFolder     string        `yaml:"unified_folder"`
	ExclusionFolders  []string      `yaml:"exclusion_folders"`
	Limit             int           `yaml:"limit"`
	PrimaryTimeout    time.Duration `yaml:"primary_timeout"`
	ExclusionTimeout  time.Duration `yaml:"exclusion_timeout"`
	HealthTimeout     time.Duration `yaml:"health_timeout"`
	ExcludeSenders    []string      `yaml:"exclude_senders"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	OAuth             OAuthConfig   `yaml:"oauth"`
}

// StorageConfig selects the KV backend and the well-known store names.
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	URL          string `yaml:"url"`
	Path         string `yaml:"path"`
	KeyPrefix    string `yaml:"key_prefix"`
	RawStore     string `yaml:"raw_store"`
	MatchedStore string `yaml:"matched_store"`
	StateStore   string `yaml:"state_store"`
}

// TriageConfig controls the post-routing triage step.
type TriageConfig struct {
	Store     string `yaml:"store"`
	AutoApply bool   `yaml:"auto_apply"`
}

// RunLockConfig enables the Redis lock that keeps replicas from
// overlapping passes.
type RunLockConfig struct {
	Enabled bool          `yaml:"enabled"`
	Key     string        `yaml:"key"`
	TTL     time.Duration `yaml:"ttl"`
}

// Config holds all configuration for the pipeline service and CLI.
type Config struct {
	MailSource MailSourceConfig
	Storage    StorageConfig
	RulesPath  string
	Triage     TriageConfig
	RunLock    RunLockConfig

	// Redis backs the hand-off queue and the run lock. Empty disables both.
	RedisURL    string
	TriageQueue string

	PollInterval time.Duration
	Port         int
	LogLevel     string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	MailSource MailSourceConfig `yaml:"mail_source"`
	Storage    StorageConfig    `yaml:"storage"`
	Rules      struct {
		Path string `yaml:"path"`
	} `yaml:"rules"`
	Triage  TriageConfig  `yaml:"triage"`
	RunLock RunLockConfig `yaml:"run_lock"`
	Redis   struct {
		URL    string `yaml:"url"`
		Queues struct {
			Triage string `yaml:"triage"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Port         int           `yaml:"port"`
	LogLevel     string        `yaml:"log_level"`
}

// Load reads the file named by CONFIG_PATH (default DefaultPath).
func Load() (*Config, error) {
	return LoadFile(envOrDefault("CONFIG_PATH", DefaultPath))
}

// LoadFile reads configuration from path with ${VAR} expansion, applies
// environment fallbacks and defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse builds a validated Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	ms := raw.MailSource
	ms.BaseURL = firstNonEmpty(ms.BaseURL, os.Getenv("MAIL_SOURCE_URL"))

	st := raw.Storage
	st.Backend = strings.ToLower(firstNonEmpty(st.Backend, envOrDefault("STORAGE_BACKEND", BackendMemory)))
	st.URL = firstNonEmpty(st.URL, os.Getenv("STORAGE_URL"))
	st.Path = firstNonEmpty(st.Path, os.Getenv("STORAGE_PATH"))

	cfg := &Config{
		MailSource:   ms,
		Storage:      st,
		RulesPath:    firstNonEmpty(raw.Rules.Path, os.Getenv("RULES_PATH")),
		Triage:       raw.Triage,
		RunLock:      raw.RunLock,
		RedisURL:     firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		TriageQueue:  firstNonEmpty(raw.Redis.Queues.Triage, envOrDefault("TRIAGE_QUEUE", "triage")),
		PollInterval: raw.PollInterval,
		Port:         raw.Port,
		LogLevel:     strings.ToLower(firstNonEmpty(raw.LogLevel, envOrDefault("LOG_LEVEL", "info"))),
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = envOrDefaultDuration("POLL_INTERVAL", 5*time.Minute)
	}
	if cfg.Port == 0 {
		cfg.Port = envOrDefaultInt("PORT", 8080)
	}
	if v := os.Getenv("AUTO_APPLY"); v != "" && !cfg.Triage.AutoApply {
		cfg.Triage.AutoApply, _ = strconv.ParseBool(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.MailSource.BaseURL == "" {
		errs = append(errs, errors.New("mail_source.base_url is required"))
	} else if u, err := url.Parse(c.MailSource.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("mail_source.base_url %q is not an absolute URL", c.MailSource.BaseURL))
	}
	if c.MailSource.Limit < 0 {
		errs = append(errs, errors.New("mail_source.limit must not be negative"))
	}
	if c.MailSource.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("mail_source.requests_per_second must not be negative"))
	}
	if c.MailSource.PrimaryTimeout < 0 || c.MailSource.ExclusionTimeout < 0 || c.MailSource.HealthTimeout < 0 {
		errs = append(errs, errors.New("mail_source timeouts must not be negative"))
	}
	if o := c.MailSource.OAuth; o.Enabled() && (o.TokenURL == "" || o.ClientID == "" || o.ClientSecret == "") {
		errs = append(errs, errors.New("mail_source.oauth needs token_url, client_id and client_secret"))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Storage.URL == "" && c.RedisURL == "" {
			errs = append(errs, errors.New("storage backend redis needs storage.url or redis.url"))
		}
	case BackendPostgres:
		if c.Storage.URL == "" {
			errs = append(errs, errors.New("storage backend postgres needs storage.url"))
		}
	case BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage backend sqlite needs storage.path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.RunLock.Enabled && c.RedisURL == "" {
		errs = append(errs, errors.New("run_lock.enabled needs redis.url"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// StorageRedisURL is the Redis URL used by the redis KV backend.
func (c *Config) StorageRedisURL() string {
	return firstNonEmpty(c.Storage.URL, c.RedisURL)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
