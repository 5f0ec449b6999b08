// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package kpi holds the shared period, trend, and formatting math used by
// every dashboard module. Modules never reimplement these; the same previous
// period and trend semantics apply everywhere.
package kpi

import (
	"fmt"
	"time"

	"github.com/kpideck/kpideck/internal/models"
)

// PreviousPeriod returns the comparison range immediately preceding r, with
// the same day count. The previous range ends the day before r starts:
// for 2025-10-01..2025-10-31 (31 days) it is 2025-09-01..2025-09-30.
func PreviousPeriod(r models.DateRange) models.DateRange {
	days := r.Days()
	prevTo := r.From.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(days - 1))
	return models.DateRange{From: prevFrom, To: prevTo}
}

// TrailingDays returns the range covering the last n days ending at ref,
// inclusive of ref's day. Both bounds are truncated to midnight.
func TrailingDays(ref time.Time, n int) models.DateRange {
	to := models.TruncateToDay(ref)
	from := to.AddDate(0, 0, -(n - 1))
	return models.DateRange{From: from, To: to}
}

// ParseDateRange builds a validated range from from/to query values in
// YYYY-MM-DD form. Empty values default to the trailing 30 days ending today.
func ParseDateRange(fromStr, toStr string, now time.Time) (models.DateRange, error) {
	if fromStr == "" && toStr == "" {
		return TrailingDays(now, 30), nil
	}
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("invalid from date %q: %w", fromStr, err)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("invalid to date %q: %w", toStr, err)
	}
	return models.NewDateRange(from, to)
}
