// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package journey

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kpideck/kpideck/internal/database"
	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/sources"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*models.JourneyRecord
	history  []models.SearchHistoryEntry
	getErr   error
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.JourneyRecord)}
}

func (s *fakeStore) GetJourney(_ context.Context, identity string) (*models.JourneyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[identity]
	if !ok {
		return nil, database.ErrJourneyNotCached
	}
	clone := *rec
	return &clone, nil
}

func (s *fakeStore) UpsertJourney(_ context.Context, record *models.JourneyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	clone := *record
	s.records[record.Identity] = &clone
	return nil
}

func (s *fakeStore) InsertSearchHistory(_ context.Context, entry *models.SearchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *entry)
	return nil
}

func (s *fakeStore) ListSearchHistory(_ context.Context, limit int) ([]models.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SearchHistoryEntry, len(s.history))
	copy(out, s.history)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

type fakeMarketing struct {
	profile *models.MarketingProfile
	err     error
	calls   int
	mu      sync.Mutex
}

func (f *fakeMarketing) Ping(context.Context) error { return nil }

func (f *fakeMarketing) MarketingStats(context.Context, models.DateRange) (*sources.MarketingStats, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMarketing) ContactByEmail(context.Context, string) (*models.MarketingProfile, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.profile, f.err
}

type fakeCRM struct {
	profile *models.CRMProfile
	err     error
}

func (f *fakeCRM) Ping(context.Context) error { return nil }

func (f *fakeCRM) DealSummary(context.Context, models.DateRange) (*sources.DealSummary, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCRM) PersonByEmail(context.Context, string) (*models.CRMProfile, error) {
	return f.profile, f.err
}

func marketingProfileFixture(daysInBase int) *models.MarketingProfile {
	added := time.Now().UTC().AddDate(0, 0, -daysInBase)
	return &models.MarketingProfile{
		Contact: models.MarketingContact{
			ID:        7,
			Email:     "ana@example.com",
			FirstName: "Ana",
			LastName:  "Lima",
			Points:    42,
			DateAdded: added,
		},
		Activities: []models.ActivityEvent{
			{Event: "email.sent", Timestamp: added},
			{Event: "email.read", Timestamp: added.Add(time.Hour)},
			{Event: "email.read", Timestamp: added.Add(2 * time.Hour)},
			{Event: "page.hit", Timestamp: added.Add(3 * time.Hour)},
			{Event: "form.submitted", Timestamp: added.Add(4 * time.Hour)},
			{Event: "asset.download", Timestamp: added.Add(5 * time.Hour)},
		},
		Campaigns: []models.Campaign{{ID: 1, Name: "Onboarding"}},
	}
}

func TestLookupFreshCacheHit(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.records["ana@example.com"] = &models.JourneyRecord{
		Identity:  "ana@example.com",
		Marketing: marketingProfileFixture(10),
		Metrics:   models.JourneyMetrics{ConversionStatus: models.StatusLead},
		CachedAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(23 * time.Hour),
	}
	marketing := &fakeMarketing{}
	svc := New(store, marketing, &fakeCRM{}, 24*time.Hour, time.Second)

	result, err := svc.Lookup(context.Background(), "Ana@Example.COM ", false, "tester")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !result.Cached {
		t.Error("Expected cached result")
	}
	if marketing.calls != 0 {
		t.Errorf("Expected no upstream calls on cache hit, got %d", marketing.calls)
	}
	if store.historyLen() != 1 {
		t.Errorf("Expected 1 history entry, got %d", store.historyLen())
	}
}

func TestLookupExpiredRecordRefetches(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.records["ana@example.com"] = &models.JourneyRecord{
		Identity:  "ana@example.com",
		Marketing: marketingProfileFixture(10),
		CachedAt:  now.Add(-25 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	marketing := &fakeMarketing{profile: marketingProfileFixture(10)}
	svc := New(store, marketing, &fakeCRM{}, 24*time.Hour, time.Second)

	result, err := svc.Lookup(context.Background(), "ana@example.com", false, "tester")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if result.Cached {
		t.Error("Expected fresh fetch for expired record")
	}
	if marketing.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", marketing.calls)
	}
	if !result.Record.ExpiresAt.After(now) {
		t.Error("Refetched record should carry a new expiry")
	}
}

func TestLookupForceBypassesCache(t *testing.T) {
	store := newFakeStore()
	now := time.Now().UTC()
	store.records["ana@example.com"] = &models.JourneyRecord{
		Identity:  "ana@example.com",
		Marketing: marketingProfileFixture(10),
		CachedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	marketing := &fakeMarketing{profile: marketingProfileFixture(10)}
	svc := New(store, marketing, &fakeCRM{}, 24*time.Hour, time.Second)

	result, err := svc.Lookup(context.Background(), "ana@example.com", true, "tester")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if result.Cached {
		t.Error("Force lookup must not serve from cache")
	}
	if marketing.calls != 1 {
		t.Errorf("Expected 1 upstream call on force, got %d", marketing.calls)
	}
}

func TestLookupIdentityNotFound(t *testing.T) {
	store := newFakeStore()
	marketing := &fakeMarketing{err: models.ErrIdentityNotFound}
	svc := New(store, marketing, &fakeCRM{}, 24*time.Hour, time.Second)

	_, err := svc.Lookup(context.Background(), "ghost@example.com", false, "tester")
	if !errors.Is(err, models.ErrIdentityNotFound) {
		t.Fatalf("Expected ErrIdentityNotFound, got %v", err)
	}
	if len(store.records) != 0 {
		t.Error("Nothing should be cached for an unknown identity")
	}
	if store.historyLen() != 0 {
		t.Error("No history entry should be written for an unknown identity")
	}
}

func TestLookupMarketingOutageFails(t *testing.T) {
	store := newFakeStore()
	marketing := &fakeMarketing{err: errors.New("upstream down")}
	svc := New(store, marketing, &fakeCRM{}, 24*time.Hour, time.Second)

	_, err := svc.Lookup(context.Background(), "ana@example.com", false, "tester")
	var lookupErr *models.LookupFailedError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Expected LookupFailedError, got %v", err)
	}
	if len(store.records) != 0 {
		t.Error("Nothing should be cached when the authoritative source fails")
	}
}

func TestLookupCRMOutageDegrades(t *testing.T) {
	store := newFakeStore()
	marketing := &fakeMarketing{profile: marketingProfileFixture(10)}
	crm := &fakeCRM{err: errors.New("crm down")}
	svc := New(store, marketing, crm, 24*time.Hour, time.Second)

	result, err := svc.Lookup(context.Background(), "ana@example.com", false, "tester")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if result.Record.CRM != nil {
		t.Error("CRM outage should degrade the record to marketing-only")
	}
	if result.Record.Metrics.ConversionStatus != models.StatusLead {
		t.Errorf("Expected lead status, got %s", result.Record.Metrics.ConversionStatus)
	}
	if len(store.records) != 1 {
		t.Error("Degraded record should still be cached")
	}
}

func TestLookupStorageWriteFailureDegrades(t *testing.T) {
	store := newFakeStore()
	store.writeErr = errors.New("disk full")
	marketing := &fakeMarketing{profile: marketingProfileFixture(10)}
	svc := New(store, marketing, &fakeCRM{}, 24*time.Hour, time.Second)

	result, err := svc.Lookup(context.Background(), "ana@example.com", false, "tester")
	if err != nil {
		t.Fatalf("Lookup() should survive a storage write failure, got %v", err)
	}
	if result.Record == nil || result.Record.Marketing == nil {
		t.Fatal("Expected a complete uncached record")
	}
}

func TestComputeMetrics(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	added := now.AddDate(0, 0, -30)
	wonTime := added.AddDate(0, 0, 12)

	marketingProf := marketingProfileFixture(30)
	marketingProf.Contact.DateAdded = added

	tests := []struct {
		name       string
		crm        *models.CRMProfile
		wantStatus models.ConversionStatus
		wantToConv *int
		wantValue  *float64
	}{
		{
			name:       "no CRM profile stays lead",
			crm:        nil,
			wantStatus: models.StatusLead,
		},
		{
			name: "won deal",
			crm: &models.CRMProfile{
				Deals: []models.Deal{{ID: 1, Status: models.DealWon, Value: 1500, WonTime: &wonTime}},
				WonDeal: &models.Deal{
					ID: 1, Status: models.DealWon, Value: 1500, WonTime: &wonTime,
				},
			},
			wantStatus: models.StatusWon,
			wantToConv: intPtr(12),
			wantValue:  floatPtr(1500),
		},
		{
			name: "open deal negotiating",
			crm: &models.CRMProfile{
				Deals: []models.Deal{{ID: 2, Status: models.DealOpen, Value: 900}},
			},
			wantStatus: models.StatusNegotiating,
		},
		{
			name: "all deals lost",
			crm: &models.CRMProfile{
				Deals: []models.Deal{{ID: 3, Status: models.DealLost}},
			},
			wantStatus: models.StatusLost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := computeMetrics(marketingProf, tt.crm, now)

			if m.ConversionStatus != tt.wantStatus {
				t.Errorf("ConversionStatus = %s, want %s", m.ConversionStatus, tt.wantStatus)
			}
			if m.DaysInBase != 30 {
				t.Errorf("DaysInBase = %d, want 30", m.DaysInBase)
			}
			if (m.DaysToConversion == nil) != (tt.wantToConv == nil) {
				t.Fatalf("DaysToConversion = %v, want %v", m.DaysToConversion, tt.wantToConv)
			}
			if tt.wantToConv != nil && *m.DaysToConversion != *tt.wantToConv {
				t.Errorf("DaysToConversion = %d, want %d", *m.DaysToConversion, *tt.wantToConv)
			}
			if (m.DealValue == nil) != (tt.wantValue == nil) {
				t.Fatalf("DealValue = %v, want %v", m.DealValue, tt.wantValue)
			}
			if tt.wantValue != nil && *m.DealValue != *tt.wantValue {
				t.Errorf("DealValue = %.2f, want %.2f", *m.DealValue, *tt.wantValue)
			}

			if m.EmailsSent != 1 || m.EmailsOpened != 2 || m.PagesVisited != 1 ||
				m.FormsSubmitted != 1 || m.Downloads != 1 {
				t.Errorf("Activity counts = sent %d opened %d pages %d forms %d downloads %d",
					m.EmailsSent, m.EmailsOpened, m.PagesVisited, m.FormsSubmitted, m.Downloads)
			}
		})
	}
}

func TestNarrativeDeterministic(t *testing.T) {
	now := time.Now().UTC()
	value := 1500.0
	days := 12
	record := &models.JourneyRecord{
		Identity:  "ana@example.com",
		Marketing: marketingProfileFixture(30),
		CRM:       &models.CRMProfile{WonDeal: &models.Deal{Value: value}},
		Metrics: models.JourneyMetrics{
			DaysInBase:       30,
			DaysToConversion: &days,
			ConversionStatus: models.StatusWon,
			DealValue:        &value,
			TotalActivities:  6,
			EmailsOpened:     2,
		},
		CachedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}

	first := BuildNarrative(record)
	second := BuildNarrative(record)
	if first != second {
		t.Error("Narrative should be deterministic for the same record")
	}
	if !strings.Contains(first, "Ana Lima") {
		t.Errorf("Narrative should name the contact, got %q", first)
	}
	if !strings.Contains(first, "Converted to customer") {
		t.Errorf("Narrative should state the conversion, got %q", first)
	}
	if !strings.Contains(first, "R$") {
		t.Errorf("Narrative should include the deal value, got %q", first)
	}
}

func TestEnrichmentPreservesExpiry(t *testing.T) {
	store := newFakeStore()
	marketing := &fakeMarketing{profile: marketingProfileFixture(10)}
	svc := New(store, marketing, &fakeCRM{}, 24*time.Hour, time.Second)

	result, err := svc.Lookup(context.Background(), "ana@example.com", false, "tester")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	svc.WaitForEnrichment()

	stored, err := store.GetJourney(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("GetJourney() error = %v", err)
	}
	if stored.Narrative == nil || *stored.Narrative == "" {
		t.Fatal("Expected enrichment to populate the narrative")
	}
	if !stored.ExpiresAt.Equal(result.Record.ExpiresAt) {
		t.Errorf("Enrichment changed ExpiresAt: %v != %v", stored.ExpiresAt, result.Record.ExpiresAt)
	}
	if !stored.CachedAt.Equal(result.Record.CachedAt) {
		t.Errorf("Enrichment changed CachedAt: %v != %v", stored.CachedAt, result.Record.CachedAt)
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
