// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package dashboard

import (
	"github.com/kpideck/kpideck/internal/kpi"
	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/sources"
)

// currencyKPI builds a pre-formatted pt-BR currency figure.
func currencyKPI(id, label string, v float64, trend *models.Trend) models.KpiValue {
	return models.KpiValue{
		ID:    id,
		Label: label,
		Value: kpi.FormatCurrency(v),
		Unit:  models.UnitCurrency,
		Trend: trend,
	}
}

func numberKPI(id, label string, v int, trend *models.Trend) models.KpiValue {
	return models.KpiValue{
		ID:    id,
		Label: label,
		Value: v,
		Unit:  models.UnitNumber,
		Trend: trend,
	}
}

func percentKPI(id, label string, v float64, trend *models.Trend) models.KpiValue {
	return models.KpiValue{
		ID:    id,
		Label: label,
		Value: kpi.FormatPercent(v),
		Unit:  models.UnitPercent,
		Trend: trend,
	}
}

// dailyChart renders a []DailyValue as one timeseries line covering every day
// of the range. Days with no data points are zero-valued, not gaps: the
// sources report activity counts and money, where absence means zero.
func dailyChart(id, title, seriesLabel string, rng models.DateRange, days []sources.DailyValue) models.Chart {
	byDay := make(map[string]float64, len(days))
	for _, d := range days {
		byDay[d.Date.Format("2006-01-02")] += d.Value
	}

	points := make([]models.TimeseriesPoint, 0, rng.Days())
	for d := rng.From; !d.After(rng.To); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		v := byDay[key]
		points = append(points, models.TimeseriesPoint{X: key, Y: &v})
	}

	return models.Chart{
		ID:          id,
		Type:        models.ChartTimeseries,
		Title:       title,
		Granularity: "day",
		Series: []models.TimeseriesSeries{
			{ID: id + "-series", Label: seriesLabel, Points: points},
		},
	}
}

// stageChart renders pipeline stages as a bar chart of open deal values.
func stageChart(id, title string, stages []sources.StageCount) models.Chart {
	categories := make([]models.BarCategory, 0, len(stages))
	for _, st := range stages {
		v := st.Value
		categories = append(categories, models.BarCategory{X: st.Stage, Y: &v})
	}
	return models.Chart{
		ID:         id,
		Type:       models.ChartBar,
		Title:      title,
		Categories: categories,
	}
}

// float64Ptr adapts a present previous-period value for trend computation.
func float64Ptr(v float64, present bool) *float64 {
	if !present {
		return nil
	}
	return &v
}

// intTrend computes the optional trend for an integer KPI.
func intTrend(current, previous int, hasPrevious, compare bool) *models.Trend {
	return kpi.TrendPtr(float64Ptr(float64(current), true), float64Ptr(float64(previous), hasPrevious), compare)
}

// floatTrend computes the optional trend for a float KPI.
func floatTrend(current, previous float64, hasPrevious, compare bool) *models.Trend {
	return kpi.TrendPtr(float64Ptr(current, true), float64Ptr(previous, hasPrevious), compare)
}
