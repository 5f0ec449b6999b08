// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package dashboard

import (
	"context"

	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/sources"
)

// buildSales renders the CRM deal module.
func buildSales(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	client, err := s.dir.CRM(ctx, tenant)
	if err != nil {
		return nil, err
	}

	current, previous, hasPrev, err := fetchPeriods(ctx, rng, compare, func(ctx context.Context, r models.DateRange) (*sources.DealSummary, error) {
		return client.DealSummary(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	prev := previous
	if !hasPrev {
		prev = &sources.DealSummary{}
	}

	payload := &models.ModulePayload{
		ModuleID: "sales",
		Title:    "Vendas",
		Summary: []models.KpiValue{
			currencyKPI("won-value", "Receita fechada", current.WonValue,
				floatTrend(current.WonValue, prev.WonValue, hasPrev, compare)),
			numberKPI("won-count", "Negócios ganhos", current.WonCount,
				intTrend(current.WonCount, prev.WonCount, hasPrev, compare)),
			currencyKPI("avg-deal", "Ticket médio", current.AvgDealValue,
				floatTrend(current.AvgDealValue, prev.AvgDealValue, hasPrev, compare)),
			currencyKPI("open-value", "Pipeline aberto", current.OpenValue, nil),
			numberKPI("open-count", "Negócios em aberto", current.OpenCount, nil),
			numberKPI("lost-count", "Negócios perdidos", current.LostCount,
				intTrend(current.LostCount, prev.LostCount, hasPrev, compare)),
		},
		Charts: []models.Chart{
			dailyChart("won-by-day", "Receita fechada por dia", "Receita", rng, current.WonByDay),
			stageChart("pipeline", "Pipeline por etapa", current.Pipeline),
		},
		Tables: []models.Table{pipelineTable(current.Pipeline)},
	}
	return payload, nil
}

func pipelineTable(stages []sources.StageCount) models.Table {
	rows := make([]models.TableRow, 0, len(stages))
	for _, st := range stages {
		rows = append(rows, models.TableRow{
			"stage": st.Stage,
			"count": st.Count,
			"value": st.Value,
		})
	}
	return models.Table{
		ID:    "pipeline-stages",
		Title: "Etapas do pipeline",
		Columns: []models.TableColumn{
			{ID: "stage", Label: "Etapa"},
			{ID: "count", Label: "Negócios", Type: "number"},
			{ID: "value", Label: "Valor", Type: "currency"},
		},
		Rows: rows,
	}
}
