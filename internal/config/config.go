// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package config provides layered configuration loading (defaults, optional
// YAML file, environment variables) plus credential encryption for stored
// integrations.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logging   LoggingConfig   `koanf:"logging"`
	Cache     CacheConfig     `koanf:"cache"`
	Snapshots SnapshotsConfig `koanf:"snapshots"`
	Journey   JourneyConfig   `koanf:"journey"`
	Security  SecurityConfig  `koanf:"security"`
	Sources   SourcesConfig   `koanf:"sources"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	Host           string        `koanf:"host" validate:"required"`
	Timeout        time.Duration `koanf:"timeout" validate:"min=1s"`
	CORSOrigins    []string      `koanf:"cors_origins"`
	RateLimitReqs  int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindw time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"` // 0 = runtime.NumCPU()
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig controls the in-memory payload cache.
type CacheConfig struct {
	DashboardTTL time.Duration `koanf:"dashboard_ttl" validate:"min=1m"`
}

// SnapshotsConfig controls the daily snapshot scheduler.
type SnapshotsConfig struct {
	Enabled      bool          `koanf:"enabled"`
	RunAt        string        `koanf:"run_at"` // HH:MM in server local time
	LookbackDays int           `koanf:"lookback_days" validate:"min=1,max=365"`
	UnitTimeout  time.Duration `koanf:"unit_timeout" validate:"min=1s"`
}

// JourneyConfig controls the journey cache.
type JourneyConfig struct {
	TTL          time.Duration `koanf:"ttl" validate:"min=1m"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"min=1s"`
}

// SecurityConfig holds secrets used by the credential encryptor.
type SecurityConfig struct {
	EncryptionSecret string `koanf:"encryption_secret"`
}

// SourcesConfig holds environment-level default credentials per source. A
// tenant's stored integration takes precedence; these fill the gap when none
// exists.
type SourcesConfig struct {
	CRM        SourceCredsConfig `koanf:"crm"`
	Accounting SourceCredsConfig `koanf:"accounting"`
	Chat       SourceCredsConfig `koanf:"chat"`
	Social     SourceCredsConfig `koanf:"social"`
	Learning   SourceCredsConfig `koanf:"learning"`
	Marketing  SourceCredsConfig `koanf:"marketing"`
	Investment SourceCredsConfig `koanf:"investment"`
}

// SourceCredsConfig is the flat credential set for one source. Unused fields
// stay empty; each adapter documents which keys it needs.
type SourceCredsConfig struct {
	BaseURL      string `koanf:"base_url"`
	APIToken     string `koanf:"api_token"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	BotToken     string `koanf:"bot_token"`
	GuildID      string `koanf:"guild_id"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	AccountID    string `koanf:"account_id"`
}

// Empty reports whether no credential field at all is set.
func (s SourceCredsConfig) Empty() bool {
	return s == SourceCredsConfig{}
}

// Map converts the config struct to the flat credential bag the source
// directory works with. Empty fields are omitted.
func (s SourceCredsConfig) Map() map[string]string {
	out := make(map[string]string)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("base_url", s.BaseURL)
	put("api_token", s.APIToken)
	put("username", s.Username)
	put("password", s.Password)
	put("bot_token", s.BotToken)
	put("guild_id", s.GuildID)
	put("client_id", s.ClientID)
	put("client_secret", s.ClientSecret)
	put("account_id", s.AccountID)
	return out
}

// Validate checks the configuration using struct tags plus cross-field rules
// that tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := ParseRunAt(c.Snapshots.RunAt); err != nil {
		return fmt.Errorf("invalid snapshots.run_at: %w", err)
	}

	return nil
}

// ParseRunAt parses an HH:MM clock string into hour and minute.
func ParseRunAt(s string) (struct{ Hour, Minute int }, error) {
	var out struct{ Hour, Minute int }
	t, err := time.Parse("15:04", s)
	if err != nil {
		return out, fmt.Errorf("expected HH:MM, got %q: %w", s, err)
	}
	out.Hour = t.Hour()
	out.Minute = t.Minute()
	return out, nil
}
