// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.DashboardTTL != 30*time.Minute {
		t.Errorf("Cache.DashboardTTL = %v, want 30m", cfg.Cache.DashboardTTL)
	}
	if cfg.Journey.TTL != 24*time.Hour {
		t.Errorf("Journey.TTL = %v, want 24h", cfg.Journey.TTL)
	}
	if cfg.Snapshots.RunAt != "00:00" {
		t.Errorf("Snapshots.RunAt = %q, want 00:00", cfg.Snapshots.RunAt)
	}
	if cfg.Snapshots.LookbackDays != 30 {
		t.Errorf("Snapshots.LookbackDays = %d, want 30", cfg.Snapshots.LookbackDays)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad run_at", func(c *Config) { c.Snapshots.RunAt = "24:99" }},
		{"lookback too small", func(c *Config) { c.Snapshots.LookbackDays = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"DUCKDB_PATH", "database.path"},
		{"MAUTIC_BASE_URL", "sources.marketing.base_url"},
		{"PIPEDRIVE_API_TOKEN", "sources.crm.api_token"},
		{"DISCORD_BOT_TOKEN", "sources.chat.bot_token"},
		{"SNAPSHOTS_RUN_AT", "snapshots.run_at"},
		{"ENCRYPTION_SECRET", "security.encryption_secret"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%s) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestParseRunAt(t *testing.T) {
	at, err := ParseRunAt("00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if at.Hour != 0 || at.Minute != 0 {
		t.Errorf("ParseRunAt(00:00) = %v, want midnight", at)
	}

	at, err = ParseRunAt("03:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if at.Hour != 3 || at.Minute != 30 {
		t.Errorf("ParseRunAt(03:30) = %v, want 3h30", at)
	}

	if _, err := ParseRunAt("midnight"); err == nil {
		t.Error("expected error for non-clock string")
	}
}

func TestSourceCredsConfigMap(t *testing.T) {
	creds := SourceCredsConfig{
		BaseURL:  "https://api.example.com",
		APIToken: "tok",
	}
	m := creds.Map()
	if len(m) != 2 {
		t.Errorf("Map() has %d entries, want 2", len(m))
	}
	if m["base_url"] != "https://api.example.com" || m["api_token"] != "tok" {
		t.Errorf("Map() = %v", m)
	}

	if !(SourceCredsConfig{}).Empty() {
		t.Error("zero value must report Empty")
	}
	if creds.Empty() {
		t.Error("populated config must not report Empty")
	}
}
