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

// buildAcademy renders the learning platform module.
func buildAcademy(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	client, err := s.dir.Learning(ctx, tenant)
	if err != nil {
		return nil, err
	}

	current, previous, hasPrev, err := fetchPeriods(ctx, rng, compare, func(ctx context.Context, r models.DateRange) (*sources.LearningStats, error) {
		return client.LearningStats(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	prev := previous
	if !hasPrev {
		prev = &sources.LearningStats{}
	}

	return &models.ModulePayload{
		ModuleID: "academy",
		Title:    "Academy",
		Summary: []models.KpiValue{
			numberKPI("active-students", "Alunos ativos", current.ActiveStudents,
				intTrend(current.ActiveStudents, prev.ActiveStudents, hasPrev, compare)),
			numberKPI("new-enrollments", "Novas matrículas", current.NewEnrollments,
				intTrend(current.NewEnrollments, prev.NewEnrollments, hasPrev, compare)),
			percentKPI("completion-rate", "Progresso médio", current.CompletionRate,
				floatTrend(current.CompletionRate, prev.CompletionRate, hasPrev, compare)),
			numberKPI("courses-published", "Cursos publicados", current.CoursesPublished, nil),
		},
	}, nil
}

// buildInvestments renders the investment platform module.
func buildInvestments(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	client, err := s.dir.Investment(ctx, tenant)
	if err != nil {
		return nil, err
	}

	current, previous, hasPrev, err := fetchPeriods(ctx, rng, compare, func(ctx context.Context, r models.DateRange) (*sources.InvestmentStats, error) {
		return client.InvestmentStats(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	prev := previous
	if !hasPrev {
		prev = &sources.InvestmentStats{}
	}

	return &models.ModulePayload{
		ModuleID: "investments",
		Title:    "Investimentos",
		Summary: []models.KpiValue{
			currencyKPI("total-invested", "Total investido", current.TotalInvested,
				floatTrend(current.TotalInvested, prev.TotalInvested, hasPrev, compare)),
			numberKPI("investor-count", "Investidores", current.InvestorCount,
				intTrend(current.InvestorCount, prev.InvestorCount, hasPrev, compare)),
			numberKPI("active-offerings", "Ofertas ativas", current.ActiveOfferings, nil),
			currencyKPI("avg-ticket", "Ticket médio", current.AvgTicket,
				floatTrend(current.AvgTicket, prev.AvgTicket, hasPrev, compare)),
		},
	}, nil
}
