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

// buildFinance renders the accounting module.
func buildFinance(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	client, err := s.dir.Accounting(ctx, tenant)
	if err != nil {
		return nil, err
	}

	current, previous, hasPrev, err := fetchPeriods(ctx, rng, compare, func(ctx context.Context, r models.DateRange) (*sources.FinanceSummary, error) {
		return client.FinanceSummary(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	prev := previous
	if !hasPrev {
		prev = &sources.FinanceSummary{}
	}

	return &models.ModulePayload{
		ModuleID: "finance",
		Title:    "Financeiro",
		Summary: []models.KpiValue{
			currencyKPI("revenue", "Receita", current.Revenue,
				floatTrend(current.Revenue, prev.Revenue, hasPrev, compare)),
			currencyKPI("expenses", "Despesas", current.Expenses,
				floatTrend(current.Expenses, prev.Expenses, hasPrev, compare)),
			currencyKPI("net-income", "Resultado líquido", current.NetIncome,
				floatTrend(current.NetIncome, prev.NetIncome, hasPrev, compare)),
			currencyKPI("receivables-overdue", "Recebíveis em atraso", current.ReceivablesOverdue, nil),
		},
		Charts: []models.Chart{
			dailyChart("revenue-by-day", "Receita por dia", "Receita", rng, current.RevenueByDay),
		},
	}, nil
}
