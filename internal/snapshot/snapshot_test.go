// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/kpideck/kpideck/internal/models"
)

type memStore struct {
	mu        sync.Mutex
	rows      []models.KpiSnapshot
	insertErr error
}

func (s *memStore) InsertSnapshot(_ context.Context, snap *models.KpiSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.rows = append(s.rows, *snap)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func okUnit(name, slug, domain string, tenantID int64) Unit {
	id := tenantID
	return Unit{
		Name:       name,
		TenantID:   &id,
		TenantSlug: slug,
		Domain:     domain,
		Fetch: func(context.Context, models.DateRange) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		},
	}
}

func TestExecuteAllAccounting(t *testing.T) {
	store := &memStore{}
	units := []Unit{
		okUnit("blue-consult:sales", "blue-consult", "sales", 1),
		okUnit("blue-consult:finance", "blue-consult", "finance", 1),
		{
			Name: "tokeniza:sales", TenantSlug: "tokeniza", Domain: "sales",
			Fetch: func(context.Context, models.DateRange) (json.RawMessage, error) {
				return nil, errors.New("upstream down")
			},
		},
	}

	var invalidated []string
	svc := New(store, units, 30, time.Minute, func(slug string) int {
		invalidated = append(invalidated, slug)
		return 1
	})

	result := svc.ExecuteAll(context.Background(), "manual")

	if result.Success != 2 || result.Failed != 1 {
		t.Errorf("Success=%d Failed=%d, want 2/1", result.Success, result.Failed)
	}
	if result.Trigger != "manual" {
		t.Errorf("Trigger = %s, want manual", result.Trigger)
	}
	if len(result.Failures) != 1 || result.Failures[0].Unit != "tokeniza:sales" {
		t.Errorf("Failures = %+v, want the tokeniza unit", result.Failures)
	}
	if store.count() != 2 {
		t.Errorf("Stored rows = %d, want 2", store.count())
	}
	// One invalidation per tenant with a fresh row, not per unit.
	if len(invalidated) != 1 || invalidated[0] != "blue-consult" {
		t.Errorf("Invalidated = %v, want [blue-consult]", invalidated)
	}
}

func TestExecuteUnitFailureIsContained(t *testing.T) {
	store := &memStore{}
	units := []Unit{
		{
			Name: "panics", TenantSlug: "blue-consult", Domain: "sales",
			Fetch: func(context.Context, models.DateRange) (json.RawMessage, error) {
				panic("boom")
			},
		},
		okUnit("survives", "blue-consult", "finance", 1),
	}
	svc := New(store, units, 30, time.Minute, nil)

	result := svc.ExecuteAll(context.Background(), "scheduled")
	if result.Failed != 1 || result.Success != 1 {
		t.Errorf("Success=%d Failed=%d, want 1/1 after a panicking unit", result.Success, result.Failed)
	}
}

func TestExecuteAllStorageFailure(t *testing.T) {
	store := &memStore{insertErr: models.ErrStorageUnavailable}
	svc := New(store, []Unit{okUnit("u", "blue-consult", "sales", 1)}, 30, time.Minute, nil)

	result := svc.ExecuteAll(context.Background(), "manual")
	if result.Failed != 1 || result.Success != 0 {
		t.Errorf("Storage failure should count as a failed unit, got %d/%d", result.Success, result.Failed)
	}
}

func TestSnapshotRowShape(t *testing.T) {
	store := &memStore{}
	svc := New(store, []Unit{okUnit("blue-consult:sales", "blue-consult", "sales", 7)}, 30, time.Minute, nil)

	before := models.TruncateToDay(time.Now())
	svc.ExecuteAll(context.Background(), "scheduled")

	row := store.rows[0]
	if row.TenantID == nil || *row.TenantID != 7 {
		t.Errorf("TenantID = %v, want 7", row.TenantID)
	}
	if !row.SnapshotDate.Equal(before) {
		t.Errorf("SnapshotDate = %v, want midnight %v", row.SnapshotDate, before)
	}
	if row.SnapshotDate.Hour() != 0 || row.SnapshotDate.Minute() != 0 {
		t.Error("SnapshotDate must be truncated to midnight")
	}
	if row.Domain != "sales" {
		t.Errorf("Domain = %s, want sales", row.Domain)
	}
}

type fakeComputer struct {
	mu       sync.Mutex
	computed []string
	failFor  map[string]bool
}

func (f *fakeComputer) Compute(_ context.Context, slug, moduleID string, _ models.DateRange, compare bool) (*models.ModulePayload, bool, error) {
	f.mu.Lock()
	f.computed = append(f.computed, slug+":"+moduleID)
	f.mu.Unlock()
	if compare {
		return nil, false, errors.New("snapshots never compare periods")
	}
	if f.failFor[slug] {
		return nil, false, errors.New("tenant sources down")
	}
	return &models.ModulePayload{ModuleID: moduleID, Title: moduleID}, false, nil
}

func (f *fakeComputer) InvalidateTenant(string) int { return 0 }

func TestBuildUnits(t *testing.T) {
	tenants := []models.Tenant{
		{ID: 1, Slug: "blue-consult", Active: true},
		{ID: 2, Slug: "tokeniza", Active: true},
		{ID: 3, Slug: "inactive-co", Active: false},
	}
	moduleIDs := []string{"sales", "finance"}
	computer := &fakeComputer{}

	units := BuildUnits(tenants, moduleIDs, computer)

	// 2 active tenants x 2 modules + 1 consolidated.
	if len(units) != 5 {
		t.Fatalf("Units = %d, want 5", len(units))
	}
	last := units[len(units)-1]
	if last.TenantID != nil {
		t.Error("Consolidated unit must carry a nil tenant id")
	}
	if last.Domain != "overview" {
		t.Errorf("Consolidated domain = %s, want overview", last.Domain)
	}

	rng, _ := models.NewDateRange(time.Now().AddDate(0, 0, -29), time.Now())
	payload, err := units[0].Fetch(context.Background(), rng)
	if err != nil {
		t.Fatalf("Unit fetch error = %v", err)
	}
	var decoded models.ModulePayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unit payload is not a module payload: %v", err)
	}
	if decoded.ModuleID != "sales" {
		t.Errorf("Payload module = %s, want sales", decoded.ModuleID)
	}
}

func TestConsolidatedPayloadDegrades(t *testing.T) {
	tenants := []models.Tenant{
		{ID: 1, Slug: "blue-consult", Active: true},
		{ID: 2, Slug: "tokeniza", Active: true},
	}
	computer := &fakeComputer{failFor: map[string]bool{"tokeniza": true}}

	rng, _ := models.NewDateRange(time.Now().AddDate(0, 0, -29), time.Now())
	payload, err := consolidatedPayload(context.Background(), tenants, computer, rng)
	if err != nil {
		t.Fatalf("One failing tenant should not fail the consolidated row: %v", err)
	}

	var decoded struct {
		Tenants []struct {
			Tenant string `json:"tenant"`
			Error  string `json:"error"`
		} `json:"tenants"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if len(decoded.Tenants) != 2 {
		t.Fatalf("Tenants = %d, want 2", len(decoded.Tenants))
	}
	if decoded.Tenants[1].Error == "" {
		t.Error("Failing tenant should carry its error in the consolidated payload")
	}

	// Every tenant failing fails the row.
	computer.failFor["blue-consult"] = true
	if _, err := consolidatedPayload(context.Background(), tenants, computer, rng); err == nil {
		t.Error("Expected an error when every tenant overview fails")
	}
}

func TestSchedulerNextRun(t *testing.T) {
	sched := NewScheduler(New(&memStore{}, nil, 30, time.Minute, nil), 0, 0)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid-day rolls to next midnight",
			now:  time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC),
			want: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly midnight schedules tomorrow",
			now:  time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "just before midnight stays same night",
			now:  time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sched.nextRun(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestManualTriggerSharesExecutePath(t *testing.T) {
	store := &memStore{}
	svc := New(store, []Unit{okUnit("u", "blue-consult", "sales", 1)}, 30, time.Minute, nil)
	sched := NewScheduler(svc, 0, 0)

	result := sched.RunNow(context.Background())
	if result.Trigger != "manual" {
		t.Errorf("Trigger = %s, want manual", result.Trigger)
	}
	if store.count() != 1 {
		t.Errorf("Stored rows = %d, want 1", store.count())
	}
}
