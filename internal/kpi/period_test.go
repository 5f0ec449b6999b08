// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package kpi

import (
	"testing"
	"time"

	"github.com/kpideck/kpideck/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPreviousPeriod(t *testing.T) {
	tests := []struct {
		name     string
		from, to time.Time
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name: "full october maps to full september",
			from: day(2025, 10, 1), to: day(2025, 10, 31),
			wantFrom: day(2025, 9, 1), wantTo: day(2025, 9, 30),
		},
		{
			name: "single day maps to the day before",
			from: day(2025, 10, 15), to: day(2025, 10, 15),
			wantFrom: day(2025, 10, 14), wantTo: day(2025, 10, 14),
		},
		{
			name: "week spanning month boundary",
			from: day(2025, 11, 3), to: day(2025, 11, 9),
			wantFrom: day(2025, 10, 27), wantTo: day(2025, 11, 2),
		},
		{
			name: "range spanning february in a non-leap year",
			from: day(2025, 3, 1), to: day(2025, 3, 28),
			wantFrom: day(2025, 2, 1), wantTo: day(2025, 2, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := models.DateRange{From: tt.from, To: tt.to}
			prev := PreviousPeriod(r)
			if !prev.From.Equal(tt.wantFrom) || !prev.To.Equal(tt.wantTo) {
				t.Errorf("PreviousPeriod(%s..%s) = %s..%s, want %s..%s",
					tt.from.Format("2006-01-02"), tt.to.Format("2006-01-02"),
					prev.From.Format("2006-01-02"), prev.To.Format("2006-01-02"),
					tt.wantFrom.Format("2006-01-02"), tt.wantTo.Format("2006-01-02"))
			}
			if prev.Days() != r.Days() {
				t.Errorf("previous period has %d days, want %d", prev.Days(), r.Days())
			}
		})
	}
}

func TestPreviousPeriodIsAdjacent(t *testing.T) {
	r := models.DateRange{From: day(2025, 6, 10), To: day(2025, 6, 20)}
	prev := PreviousPeriod(r)
	if got := prev.To.AddDate(0, 0, 1); !got.Equal(r.From) {
		t.Errorf("previous period ends at %s, want the day before %s",
			prev.To.Format("2006-01-02"), r.From.Format("2006-01-02"))
	}
}

func TestTrailingDays(t *testing.T) {
	ref := time.Date(2026, 8, 29, 14, 35, 7, 0, time.UTC)
	r := TrailingDays(ref, 30)
	if r.Days() != 30 {
		t.Errorf("Days() = %d, want 30", r.Days())
	}
	if !r.To.Equal(day(2026, 8, 29)) {
		t.Errorf("To = %s, want 2026-08-29", r.To.Format("2006-01-02"))
	}
	if !r.From.Equal(day(2026, 7, 31)) {
		t.Errorf("From = %s, want 2026-07-31", r.From.Format("2006-01-02"))
	}
}

func TestParseDateRange(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	t.Run("defaults to trailing 30 days", func(t *testing.T) {
		r, err := ParseDateRange("", "", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Days() != 30 {
			t.Errorf("Days() = %d, want 30", r.Days())
		}
	})

	t.Run("explicit range", func(t *testing.T) {
		r, err := ParseDateRange("2025-10-01", "2025-10-31", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Days() != 31 {
			t.Errorf("Days() = %d, want 31", r.Days())
		}
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		if _, err := ParseDateRange("2025-10-31", "2025-10-01", now); err == nil {
			t.Error("expected error for from > to")
		}
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		if _, err := ParseDateRange("31/10/2025", "2025-10-31", now); err == nil {
			t.Error("expected error for non-ISO date")
		}
	})
}
