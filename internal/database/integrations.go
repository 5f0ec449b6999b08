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

	"github.com/goccy/go-json"

	"github.com/kpideck/kpideck/internal/config"
	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
)

// ErrIntegrationNotFound indicates no stored credential set for the
// (tenant, source) pair. Callers fall back to environment defaults.
var ErrIntegrationNotFound = errors.New("integration not found")

// UpsertIntegration stores credentials for a (tenant, source) pair, replacing
// any existing row. The credential map is serialized to JSON and encrypted
// before it touches disk.
func (db *DB) UpsertIntegration(ctx context.Context, enc *config.CredentialEncryptor, integ models.Integration) error {
	raw, err := json.Marshal(integ.Credentials)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}
	ciphertext, err := enc.Encrypt(string(raw))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO integrations (tenant_id, source_name, credentials, updated_at)
		 VALUES (?, ?, ?, ?)`,
		integ.TenantID, integ.SourceName, ciphertext, time.Now().UTC(),
	)
	metrics.RecordDBQuery("upsert", "integrations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// GetIntegration returns the decrypted credential set for a (tenant, source)
// pair, or ErrIntegrationNotFound.
func (db *DB) GetIntegration(ctx context.Context, enc *config.CredentialEncryptor, tenantID int64, sourceName string) (*models.Integration, error) {
	start := time.Now()
	var ciphertext string
	var updatedAt time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT credentials, updated_at FROM integrations WHERE tenant_id = ? AND source_name = ?`,
		tenantID, sourceName,
	).Scan(&ciphertext, &updatedAt)
	metrics.RecordDBQuery("select", "integrations", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials for %s: %w", sourceName, err)
	}

	var creds models.Credentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials for %s: %w", sourceName, err)
	}

	return &models.Integration{
		TenantID:    tenantID,
		SourceName:  sourceName,
		Credentials: creds,
		UpdatedAt:   updatedAt,
	}, nil
}

// DeleteIntegration removes stored credentials for a (tenant, source) pair.
// No-op when nothing is stored.
func (db *DB) DeleteIntegration(ctx context.Context, tenantID int64, sourceName string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM integrations WHERE tenant_id = ? AND source_name = ?`,
		tenantID, sourceName,
	)
	metrics.RecordDBQuery("delete", "integrations", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}
