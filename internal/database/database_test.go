// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kpideck/kpideck/internal/config"
	"github.com/kpideck/kpideck/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeededTenants(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tenants, err := db.ListTenants(ctx)
	if err != nil {
		t.Fatalf("ListTenants: %v", err)
	}
	if len(tenants) != 4 {
		t.Fatalf("seeded %d tenants, want 4", len(tenants))
	}

	got, err := db.GetTenantBySlug(ctx, "blue-consult")
	if err != nil {
		t.Fatalf("GetTenantBySlug: %v", err)
	}
	if got.Name != "Blue Consult" || !got.Active {
		t.Errorf("unexpected tenant: %+v", got)
	}
}

func TestGetTenantBySlugNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetTenantBySlug(context.Background(), "nope")
	var notFound *models.TenantNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want TenantNotFoundError", err)
	}
	if notFound.Slug != "nope" {
		t.Errorf("Slug = %q, want nope", notFound.Slug)
	}
}

func TestIntegrationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	enc, err := config.NewCredentialEncryptor("test-secret")
	if err != nil {
		t.Fatalf("encryptor: %v", err)
	}

	integ := models.Integration{
		TenantID:   1,
		SourceName: "crm",
		Credentials: models.Credentials{
			"api_token": "super-secret-token",
			"base_url":  "https://crm.example.com",
		},
	}
	if err := db.UpsertIntegration(ctx, enc, integ); err != nil {
		t.Fatalf("UpsertIntegration: %v", err)
	}

	got, err := db.GetIntegration(ctx, enc, 1, "crm")
	if err != nil {
		t.Fatalf("GetIntegration: %v", err)
	}
	if got.Credentials["api_token"] != "super-secret-token" {
		t.Errorf("api_token = %q", got.Credentials["api_token"])
	}

	// Stored value must be encrypted, never plaintext.
	var stored string
	if err := db.Conn().QueryRow(
		`SELECT credentials FROM integrations WHERE tenant_id = 1 AND source_name = 'crm'`,
	).Scan(&stored); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if stored == "" || stored == "super-secret-token" {
		t.Error("credentials stored in plaintext")
	}

	// Upsert replaces the previous row.
	integ.Credentials["api_token"] = "rotated"
	if err := db.UpsertIntegration(ctx, enc, integ); err != nil {
		t.Fatalf("UpsertIntegration (replace): %v", err)
	}
	got, err = db.GetIntegration(ctx, enc, 1, "crm")
	if err != nil {
		t.Fatalf("GetIntegration after replace: %v", err)
	}
	if got.Credentials["api_token"] != "rotated" {
		t.Errorf("api_token after replace = %q, want rotated", got.Credentials["api_token"])
	}
}

func TestGetIntegrationNotFound(t *testing.T) {
	db := newTestDB(t)
	enc, _ := config.NewCredentialEncryptor("test-secret")

	_, err := db.GetIntegration(context.Background(), enc, 99, "crm")
	if !errors.Is(err, ErrIntegrationNotFound) {
		t.Errorf("error = %v, want ErrIntegrationNotFound", err)
	}
}

func TestJourneyUpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	record := &models.JourneyRecord{
		Identity: "User@Example.com",
		Metrics: models.JourneyMetrics{
			ConversionStatus: models.StatusLead,
			TotalActivities:  3,
		},
		CachedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := db.UpsertJourney(ctx, record); err != nil {
		t.Fatalf("UpsertJourney: %v", err)
	}

	// Lookup is case-insensitive.
	got, err := db.GetJourney(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetJourney: %v", err)
	}
	if got.Metrics.TotalActivities != 3 {
		t.Errorf("TotalActivities = %d, want 3", got.Metrics.TotalActivities)
	}

	// Upsert keeps one row per identity.
	record.Metrics.TotalActivities = 5
	if err := db.UpsertJourney(ctx, record); err != nil {
		t.Fatalf("UpsertJourney (replace): %v", err)
	}
	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM journeys`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("journey rows = %d, want 1", count)
	}
}

func TestGetJourneyNotCached(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetJourney(context.Background(), "missing@example.com")
	if !errors.Is(err, ErrJourneyNotCached) {
		t.Errorf("error = %v, want ErrJourneyNotCached", err)
	}
}

func TestDeleteExpiredJourneys(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh := &models.JourneyRecord{Identity: "fresh@example.com", CachedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := &models.JourneyRecord{Identity: "stale@example.com", CachedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}
	for _, r := range []*models.JourneyRecord{fresh, stale} {
		if err := db.UpsertJourney(ctx, r); err != nil {
			t.Fatalf("UpsertJourney: %v", err)
		}
	}

	removed, err := db.DeleteExpiredJourneys(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredJourneys: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := db.GetJourney(ctx, "fresh@example.com"); err != nil {
		t.Errorf("fresh journey should survive: %v", err)
	}
}

func TestSearchHistoryAppendOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &models.SearchHistoryEntry{
			ID:          timeOrderedID(i),
			Identity:    "user@example.com",
			DisplayName: "User Example",
			Status:      models.StatusNegotiating,
			SearchedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second),
			SearchedBy:  "operator",
		}
		if err := db.InsertSearchHistory(ctx, entry); err != nil {
			t.Fatalf("InsertSearchHistory: %v", err)
		}
	}

	entries, err := db.ListSearchHistory(ctx, 10)
	if err != nil {
		t.Fatalf("ListSearchHistory: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (history is append-only)", len(entries))
	}
	// Newest first.
	if !entries[0].SearchedAt.After(entries[2].SearchedAt) {
		t.Error("entries not ordered newest first")
	}
}

func timeOrderedID(i int) string {
	return time.Now().UTC().Format("20060102150405") + "-" + string(rune('a'+i))
}

func TestSnapshotAppendAndLatest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	tenantID := int64(1)

	first := &models.KpiSnapshot{
		TenantID:     &tenantID,
		SnapshotDate: day,
		Domain:       "sales",
		SourceName:   "crm",
		Payload:      []byte(`{"total": 100}`),
		CreatedAt:    day.Add(1 * time.Hour),
	}
	second := &models.KpiSnapshot{
		TenantID:     &tenantID,
		SnapshotDate: day,
		Domain:       "sales",
		SourceName:   "crm",
		Payload:      []byte(`{"total": 120}`),
		CreatedAt:    day.Add(2 * time.Hour),
	}
	for _, s := range []*models.KpiSnapshot{first, second} {
		if err := db.InsertSnapshot(ctx, s); err != nil {
			t.Fatalf("InsertSnapshot: %v", err)
		}
	}

	// Both rows persist; the read path picks the newest.
	var count int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM kpi_snapshots`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("snapshot rows = %d, want 2 (append-only)", count)
	}

	latest, err := db.LatestSnapshot(ctx, &tenantID, "sales", day)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if string(latest.Payload) != `{"total": 120}` {
		t.Errorf("latest payload = %s, want the second run", latest.Payload)
	}
}

func TestLatestSnapshotConsolidated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	snap := &models.KpiSnapshot{
		TenantID:     nil, // consolidated row
		SnapshotDate: day,
		Domain:       "overview",
		SourceName:   "aggregate",
		Payload:      []byte(`{}`),
	}
	if err := db.InsertSnapshot(ctx, snap); err != nil {
		t.Fatalf("InsertSnapshot: %v", err)
	}

	got, err := db.LatestSnapshot(ctx, nil, "overview", day)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got.TenantID != nil {
		t.Errorf("TenantID = %v, want nil", got.TenantID)
	}

	if _, err := db.LatestSnapshot(ctx, nil, "overview", day.AddDate(0, 0, 1)); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestLatestAPIStatusPerSource(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	records := []*models.APICallRecord{
		{SourceName: "crm", Status: models.SourceOffline, CheckedAt: base},
		{SourceName: "crm", Status: models.SourceOnline, CheckedAt: base.Add(time.Minute)},
		{SourceName: "chat", Status: models.SourceOnline, CheckedAt: base},
	}
	for _, r := range records {
		if err := db.InsertAPICallRecord(ctx, r); err != nil {
			t.Fatalf("InsertAPICallRecord: %v", err)
		}
	}

	latest, err := db.LatestAPIStatus(ctx)
	if err != nil {
		t.Fatalf("LatestAPIStatus: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("latest rows = %d, want 2 (one per source)", len(latest))
	}
	for _, rec := range latest {
		if rec.SourceName == "crm" && rec.Status != models.SourceOnline {
			t.Errorf("crm status = %s, want online (newest row)", rec.Status)
		}
	}
}
