// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package models

import (
	"fmt"
	"time"
)

// DateRange is an inclusive calendar day range. From and To are dates
// truncated to midnight; From must not be after To.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewDateRange builds a DateRange from two dates, truncating both to
// midnight in their location. It returns an error when from is after to.
func NewDateRange(from, to time.Time) (DateRange, error) {
	from = TruncateToDay(from)
	to = TruncateToDay(to)
	if from.After(to) {
		return DateRange{}, fmt.Errorf("invalid date range: from %s is after to %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return DateRange{From: from, To: to}, nil
}

// Days returns the inclusive day count of the range. A one-day range
// (From == To) has a day count of 1. Counting is calendar-based: a DST
// transition inside a location-aware range does not shift the count.
func (r DateRange) Days() int {
	from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours()/24) + 1
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := TruncateToDay(t)
	return !d.Before(r.From) && !d.After(r.To)
}

func (r DateRange) String() string {
	return r.From.Format("2006-01-02") + ".." + r.To.Format("2006-01-02")
}

// TruncateToDay strips the time-of-day portion, keeping the location.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TrendDirection indicates which way a KPI moved between periods.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// Trend is the period-over-period movement of a single KPI. Both deltas are
// nil when the comparison is undefined (missing input or previous == 0);
// a nil delta is rendered as "no data", never as a 0% change.
type Trend struct {
	DeltaAbs     *float64       `json:"deltaAbs"`
	DeltaPercent *float64       `json:"deltaPercent"`
	Direction    TrendDirection `json:"direction"`
}

// KpiUnit describes how a KpiValue should be rendered.
type KpiUnit string

const (
	UnitCurrency KpiUnit = "currency"
	UnitPercent  KpiUnit = "percent"
	UnitNumber   KpiUnit = "number"
	UnitDuration KpiUnit = "duration"
)

// KpiValue is one top-of-dashboard figure. Value is either a pre-formatted
// string (currency, percent) or a plain number. Trend is present only when
// the caller requested a period comparison.
type KpiValue struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Value   any     `json:"value"`
	Unit    KpiUnit `json:"unit,omitempty"`
	Trend   *Trend  `json:"trend,omitempty"`
	Tooltip string  `json:"tooltip,omitempty"`
}

// ChartType discriminates the chart union.
type ChartType string

const (
	ChartTimeseries ChartType = "timeseries"
	ChartBar        ChartType = "bar"
)

// TimeseriesPoint is a single (date, value) sample. Y is nil for gaps.
type TimeseriesPoint struct {
	X string   `json:"x"`
	Y *float64 `json:"y"`
}

// TimeseriesSeries is one named line in a timeseries chart.
type TimeseriesSeries struct {
	ID     string            `json:"id"`
	Label  string            `json:"label"`
	Points []TimeseriesPoint `json:"points"`
}

// BarCategory is a single labelled bar.
type BarCategory struct {
	X string   `json:"x"`
	Y *float64 `json:"y"`
}

// Chart is the tagged union of supported chart shapes. Series is populated
// for timeseries charts, Categories for bar charts.
type Chart struct {
	ID          string             `json:"id"`
	Type        ChartType          `json:"type"`
	Title       string             `json:"title"`
	Series      []TimeseriesSeries `json:"series,omitempty"`
	Categories  []BarCategory      `json:"categories,omitempty"`
	Granularity string             `json:"granularity,omitempty"`
}

// TableColumn describes one column of a dashboard table.
type TableColumn struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// TableRow maps column ids to cell values.
type TableRow map[string]any

// Table is a generic dashboard table.
type Table struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Columns []TableColumn `json:"columns"`
	Rows    []TableRow    `json:"rows"`
}

// ModulePayload is the normalized result of one KPI module computation,
// served directly to the dashboard UI and persisted verbatim by snapshots.
type ModulePayload struct {
	ModuleID string     `json:"moduleId"`
	Title    string     `json:"title"`
	Summary  []KpiValue `json:"summary"`
	Charts   []Chart    `json:"charts"`
	Tables   []Table    `json:"tables"`
}
