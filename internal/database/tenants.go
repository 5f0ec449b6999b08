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

	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
)

// defaultTenants are seeded on first startup so the dashboard works out of
// the box. Slugs are stable identifiers used in URLs and cache keys.
var defaultTenants = []models.Tenant{
	{Name: "Blue Consult", Slug: "blue-consult", Description: "Consulting business unit", Active: true},
	{Name: "Tokeniza", Slug: "tokeniza", Description: "Investment platform", Active: true},
	{Name: "Tokeniza Academy", Slug: "tokeniza-academy", Description: "Learning platform", Active: true},
	{Name: "Mychel Mendes", Slug: "mychel-mendes", Description: "Personal brand and social presence", Active: true},
}

// seedTenants inserts the default tenants when the table is empty.
func (db *DB) seedTenants() error {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM tenants`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count tenants: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, t := range defaultTenants {
		_, err := db.conn.Exec(
			`INSERT INTO tenants (name, slug, description, active, created_at) VALUES (?, ?, ?, ?, ?)`,
			t.Name, t.Slug, t.Description, t.Active, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to seed tenant %s: %w", t.Slug, err)
		}
	}
	return nil
}

// ListTenants returns all tenants ordered by name.
func (db *DB) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, slug, description, active, created_at FROM tenants ORDER BY name`)
	metrics.RecordDBQuery("select", "tenants", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// GetTenantBySlug resolves a tenant by its URL slug.
func (db *DB) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	start := time.Now()
	var t models.Tenant
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, slug, description, active, created_at FROM tenants WHERE slug = ?`,
		slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Description, &t.Active, &t.CreatedAt)
	metrics.RecordDBQuery("select", "tenants", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.TenantNotFoundError{Slug: slug}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return &t, nil
}
