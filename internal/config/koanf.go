// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/kpideck/config.yaml",
	"/etc/kpideck/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults. Defaults are applied
// first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			Timeout:        30 * time.Second,
			CORSOrigins:    []string{"*"},
			RateLimitReqs:  100,
			RateLimitWindw: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/kpideck.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			DashboardTTL: 30 * time.Minute,
		},
		Snapshots: SnapshotsConfig{
			Enabled:      true,
			RunAt:        "00:00",
			LookbackDays: 30,
			UnitTimeout:  2 * time.Minute,
		},
		Journey: JourneyConfig{
			TTL:          24 * time.Hour,
			FetchTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			EncryptionSecret: "",
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if exists)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Transform env var names to koanf paths: HTTP_PORT -> server.port,
	// MAUTIC_API_TOKEN -> sources.marketing.api_token.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths. Returns the
// first file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// supplied via env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return empty string and are skipped, so unrelated environment
// variables never pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_port":           "server.port",
		"http_host":           "server.host",
		"http_timeout":        "server.timeout",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Cache
		"dashboard_cache_ttl": "cache.dashboard_ttl",

		// Snapshots
		"snapshots_enabled":       "snapshots.enabled",
		"snapshots_run_at":        "snapshots.run_at",
		"snapshots_lookback_days": "snapshots.lookback_days",
		"snapshots_unit_timeout":  "snapshots.unit_timeout",

		// Journey
		"journey_ttl":           "journey.ttl",
		"journey_fetch_timeout": "journey.fetch_timeout",

		// Security
		"encryption_secret": "security.encryption_secret",

		// CRM (Pipedrive-compatible)
		"pipedrive_base_url":  "sources.crm.base_url",
		"pipedrive_api_token": "sources.crm.api_token",

		// Accounting (Conta Azul-compatible)
		"contaazul_base_url":      "sources.accounting.base_url",
		"contaazul_client_id":     "sources.accounting.client_id",
		"contaazul_client_secret": "sources.accounting.client_secret",

		// Chat (Discord-compatible)
		"discord_bot_token": "sources.chat.bot_token",
		"discord_guild_id":  "sources.chat.guild_id",

		// Social (Instagram-compatible)
		"instagram_api_token":  "sources.social.api_token",
		"instagram_account_id": "sources.social.account_id",

		// Learning platform (Cademi-compatible)
		"cademi_base_url":  "sources.learning.base_url",
		"cademi_api_token": "sources.learning.api_token",

		// Marketing automation (Mautic-compatible)
		"mautic_base_url": "sources.marketing.base_url",
		"mautic_username": "sources.marketing.username",
		"mautic_password": "sources.marketing.password",

		// Investment platform
		"investment_base_url":  "sources.investment.base_url",
		"investment_api_token": "sources.investment.api_token",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
