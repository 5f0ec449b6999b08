// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
)

// InsertAPICallRecord appends one row to the external-call audit trail.
func (db *DB) InsertAPICallRecord(ctx context.Context, rec *models.APICallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO api_status (id, source_name, tenant_id, status, endpoint, error_message, response_time_ms, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourceName, rec.TenantID, string(rec.Status), rec.Endpoint,
		rec.ErrorMessage, rec.ResponseTimeMs, rec.CheckedAt,
	)
	metrics.RecordDBQuery("insert", "api_status", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// LatestAPIStatus returns the most recent audit row per source, giving the
// current availability board.
func (db *DB) LatestAPIStatus(ctx context.Context) ([]models.APICallRecord, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, source_name, tenant_id, status, endpoint, error_message, response_time_ms, checked_at
		 FROM (
			SELECT *, row_number() OVER (PARTITION BY source_name ORDER BY checked_at DESC) AS rn
			FROM api_status
		 ) WHERE rn = 1
		 ORDER BY source_name`)
	metrics.RecordDBQuery("select", "api_status", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var records []models.APICallRecord
	for rows.Next() {
		var rec models.APICallRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.SourceName, &rec.TenantID, &status,
			&rec.Endpoint, &rec.ErrorMessage, &rec.ResponseTimeMs, &rec.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api status row: %w", err)
		}
		rec.Status = models.SourceStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneAPIStatus removes audit rows older than the retention cutoff and
// returns the number removed.
func (db *DB) PruneAPIStatus(ctx context.Context, olderThan time.Time) (int64, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM api_status WHERE checked_at < ?`, olderThan)
	metrics.RecordDBQuery("delete", "api_status", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
