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
	"time"

	"github.com/google/uuid"

	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
)

// ErrSnapshotNotFound indicates no snapshot row matched the read criteria.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// InsertSnapshot appends one snapshot row. Snapshots are never updated or
// deduplicated: a rerun for the same day simply adds a newer row and readers
// pick the latest by created_at.
func (db *DB) InsertSnapshot(ctx context.Context, snap *models.KpiSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO kpi_snapshots (id, tenant_id, snapshot_date, domain, source_name, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.TenantID, snap.SnapshotDate, snap.Domain, snap.SourceName,
		string(snap.Payload), snap.CreatedAt,
	)
	metrics.RecordDBQuery("insert", "kpi_snapshots", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot row for a (tenant, domain,
// day) triple. tenantID nil matches the consolidated cross-tenant rows.
func (db *DB) LatestSnapshot(ctx context.Context, tenantID *int64, domain string, day time.Time) (*models.KpiSnapshot, error) {
	day = models.TruncateToDay(day)

	query := `SELECT id, tenant_id, snapshot_date, domain, source_name, payload, created_at
		 FROM kpi_snapshots
		 WHERE domain = ? AND snapshot_date = ? AND `
	args := []interface{}{domain, day}
	if tenantID == nil {
		query += `tenant_id IS NULL`
	} else {
		query += `tenant_id = ?`
		args = append(args, *tenantID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	start := time.Now()
	row := db.conn.QueryRowContext(ctx, query, args...)

	var snap models.KpiSnapshot
	var payload string
	err := row.Scan(&snap.ID, &snap.TenantID, &snap.SnapshotDate, &snap.Domain,
		&snap.SourceName, &payload, &snap.CreatedAt)
	metrics.RecordDBQuery("select", "kpi_snapshots", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	snap.Payload = []byte(payload)
	return &snap, nil
}

// ListSnapshotDates returns the distinct snapshot dates available for a
// domain, newest first, capped at limit.
func (db *DB) ListSnapshotDates(ctx context.Context, domain string, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 60
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT snapshot_date FROM kpi_snapshots WHERE domain = ?
		 ORDER BY snapshot_date DESC LIMIT ?`, domain, limit)
	metrics.RecordDBQuery("select", "kpi_snapshots", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// CountSnapshotsForDay reports how many rows exist for a (domain, day) pair
// across all tenants. Used by the status board to confirm the nightly run.
func (db *DB) CountSnapshotsForDay(ctx context.Context, day time.Time) (int, error) {
	start := time.Now()
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kpi_snapshots WHERE snapshot_date = ?`,
		models.TruncateToDay(day),
	).Scan(&count)
	metrics.RecordDBQuery("select", "kpi_snapshots", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return count, nil
}
