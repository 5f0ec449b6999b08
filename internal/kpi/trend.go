// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package kpi

import "github.com/kpideck/kpideck/internal/models"

// ComputeTrend compares a current value against its previous-period
// counterpart. When current is missing, or previous is nil or zero, there is
// no meaningful comparison: direction is flat and both deltas are omitted.
// Division by zero is never possible here.
func ComputeTrend(current, previous *float64) models.Trend {
	if current == nil || previous == nil || *previous == 0 {
		return models.Trend{Direction: models.TrendFlat}
	}
	deltaAbs := *current - *previous
	deltaPct := (deltaAbs / *previous) * 100

	dir := models.TrendFlat
	switch {
	case deltaAbs > 0:
		dir = models.TrendUp
	case deltaAbs < 0:
		dir = models.TrendDown
	}
	return models.Trend{
		DeltaAbs:     &deltaAbs,
		DeltaPercent: &deltaPct,
		Direction:    dir,
	}
}

// TrendPtr is ComputeTrend for the common optional case: it returns nil when
// no comparison was requested (previous missing entirely), so the trend field
// is omitted from the payload rather than rendered as flat.
func TrendPtr(current, previous *float64, compare bool) *models.Trend {
	if !compare {
		return nil
	}
	t := ComputeTrend(current, previous)
	return &t
}
