// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package database wraps DuckDB and provides the persistent stores: tenants,
// encrypted integrations, the journey cache, search history, KPI snapshots,
// and the external-call audit trail.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/kpideck/kpideck/internal/config"
	"github.com/kpideck/kpideck/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the database file and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for the database file.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  cfg,
	}

	// DuckDB is an embedded single-writer engine; a small pool is enough.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database initialized")

	return db, nil
}

// NewInMemory opens an in-memory database for tests.
func NewInMemory() (*DB, error) {
	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  &config.DatabaseConfig{Path: ":memory:"},
	}
	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	return db, nil
}

// Conn returns the underlying SQL connection for packages that need direct
// access.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initialize creates the schema. Statements are idempotent so reopening an
// existing database file is safe.
func (db *DB) initialize() error {
	schema := []string{
		`CREATE SEQUENCE IF NOT EXISTS tenants_id_seq START 1`,

		`CREATE TABLE IF NOT EXISTS tenants (
			id BIGINT PRIMARY KEY DEFAULT nextval('tenants_id_seq'),
			name VARCHAR NOT NULL,
			slug VARCHAR NOT NULL UNIQUE,
			description VARCHAR DEFAULT '',
			active BOOLEAN DEFAULT true,
			created_at TIMESTAMP DEFAULT current_timestamp
		)`,

		`CREATE TABLE IF NOT EXISTS integrations (
			tenant_id BIGINT NOT NULL,
			source_name VARCHAR NOT NULL,
			credentials VARCHAR NOT NULL,
			updated_at TIMESTAMP DEFAULT current_timestamp,
			PRIMARY KEY (tenant_id, source_name)
		)`,

		`CREATE TABLE IF NOT EXISTS journeys (
			identity VARCHAR PRIMARY KEY,
			record JSON NOT NULL,
			cached_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS search_history (
			id VARCHAR PRIMARY KEY,
			identity VARCHAR NOT NULL,
			display_name VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			deal_value DOUBLE,
			searched_at TIMESTAMP NOT NULL,
			searched_by VARCHAR DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS kpi_snapshots (
			id VARCHAR PRIMARY KEY,
			tenant_id BIGINT,
			snapshot_date DATE NOT NULL,
			domain VARCHAR NOT NULL,
			source_name VARCHAR NOT NULL,
			payload JSON NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS api_status (
			id VARCHAR PRIMARY KEY,
			source_name VARCHAR NOT NULL,
			tenant_id BIGINT,
			status VARCHAR NOT NULL,
			endpoint VARCHAR DEFAULT '',
			error_message VARCHAR DEFAULT '',
			response_time_ms BIGINT,
			checked_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_snapshots_lookup
			ON kpi_snapshots (snapshot_date, domain, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_search_history_at
			ON search_history (searched_at)`,

		`CREATE INDEX IF NOT EXISTS idx_api_status_checked
			ON api_status (source_name, checked_at)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	return db.seedTenants()
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}
