// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
)

// ErrJourneyNotCached indicates no cached journey row for the identity.
var ErrJourneyNotCached = errors.New("journey not cached")

// normalizeIdentity lowercases and trims an email so cache keys are
// case-insensitive.
func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// GetJourney returns the cached journey record for an identity, regardless of
// freshness. Callers decide whether an expired record may be used.
func (db *DB) GetJourney(ctx context.Context, identity string) (*models.JourneyRecord, error) {
	start := time.Now()
	var raw string
	err := db.conn.QueryRowContext(ctx,
		`SELECT record FROM journeys WHERE identity = ?`,
		normalizeIdentity(identity),
	).Scan(&raw)
	metrics.RecordDBQuery("select", "journeys", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJourneyNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	var record models.JourneyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to parse journey record: %w", err)
	}
	return &record, nil
}

// UpsertJourney stores a journey record, replacing any previous row for the
// same identity. One row per identity, ever.
func (db *DB) UpsertJourney(ctx context.Context, record *models.JourneyRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize journey record: %w", err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO journeys (identity, record, cached_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		normalizeIdentity(record.Identity), string(raw), record.CachedAt, record.ExpiresAt,
	)
	metrics.RecordDBQuery("upsert", "journeys", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// DeleteExpiredJourneys removes rows whose expiry is in the past and returns
// the number removed. Expiry is also enforced on read, so this is purely
// housekeeping.
func (db *DB) DeleteExpiredJourneys(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM journeys WHERE expires_at < ?`, now,
	)
	metrics.RecordDBQuery("delete", "journeys", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertSearchHistory appends one search history entry. History is
// append-only; repeat lookups of the same identity produce new rows.
func (db *DB) InsertSearchHistory(ctx context.Context, entry *models.SearchHistoryEntry) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO search_history (id, identity, display_name, status, deal_value, searched_at, searched_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, normalizeIdentity(entry.Identity), entry.DisplayName, string(entry.Status),
		entry.DealValue, entry.SearchedAt, entry.SearchedBy,
	)
	metrics.RecordDBQuery("insert", "search_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// ListSearchHistory returns the most recent search entries, newest first.
func (db *DB) ListSearchHistory(ctx context.Context, limit int) ([]models.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, identity, display_name, status, deal_value, searched_at, searched_by
		 FROM search_history ORDER BY searched_at DESC LIMIT ?`, limit)
	metrics.RecordDBQuery("select", "search_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []models.SearchHistoryEntry
	for rows.Next() {
		var e models.SearchHistoryEntry
		var status string
		if err := rows.Scan(&e.ID, &e.Identity, &e.DisplayName, &status, &e.DealValue, &e.SearchedAt, &e.SearchedBy); err != nil {
			return nil, fmt.Errorf("failed to scan search history entry: %w", err)
		}
		e.Status = models.ConversionStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
