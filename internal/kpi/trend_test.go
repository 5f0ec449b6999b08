// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package kpi

import (
	"testing"

	"github.com/kpideck/kpideck/internal/models"
)

func f(v float64) *float64 { return &v }

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name     string
		current  *float64
		previous *float64
		wantDir  models.TrendDirection
		wantAbs  *float64
		wantPct  *float64
	}{
		{
			name:    "growth",
			current: f(120), previous: f(100),
			wantDir: models.TrendUp, wantAbs: f(20), wantPct: f(20),
		},
		{
			name:    "decline",
			current: f(75), previous: f(100),
			wantDir: models.TrendDown, wantAbs: f(-25), wantPct: f(-25),
		},
		{
			name:    "unchanged",
			current: f(100), previous: f(100),
			wantDir: models.TrendFlat, wantAbs: f(0), wantPct: f(0),
		},
		{
			name:    "zero baseline gives flat with no deltas",
			current: f(80), previous: f(0),
			wantDir: models.TrendFlat,
		},
		{
			name:    "missing baseline gives flat with no deltas",
			current: f(80), previous: nil,
			wantDir: models.TrendFlat,
		},
		{
			name:    "missing current gives flat with no deltas",
			current: nil, previous: f(100),
			wantDir: models.TrendFlat,
		},
		{
			name:    "decline to zero",
			current: f(0), previous: f(50),
			wantDir: models.TrendDown, wantAbs: f(-50), wantPct: f(-100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTrend(tt.current, tt.previous)
			if got.Direction != tt.wantDir {
				t.Errorf("Direction = %s, want %s", got.Direction, tt.wantDir)
			}
			checkDelta(t, "DeltaAbs", got.DeltaAbs, tt.wantAbs)
			checkDelta(t, "DeltaPercent", got.DeltaPercent, tt.wantPct)
		})
	}
}

func checkDelta(t *testing.T, field string, got, want *float64) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %v, want nil", field, *got)
	case want != nil && got == nil:
		t.Errorf("%s = nil, want %v", field, *want)
	case want != nil && got != nil && *got != *want:
		t.Errorf("%s = %v, want %v", field, *got, *want)
	}
}

func TestTrendPtr(t *testing.T) {
	if got := TrendPtr(f(120), f(100), false); got != nil {
		t.Errorf("TrendPtr with compare disabled = %+v, want nil", got)
	}
	got := TrendPtr(f(120), f(100), true)
	if got == nil {
		t.Fatal("TrendPtr with compare enabled = nil, want trend")
	}
	if got.Direction != models.TrendUp {
		t.Errorf("Direction = %s, want %s", got.Direction, models.TrendUp)
	}
}
