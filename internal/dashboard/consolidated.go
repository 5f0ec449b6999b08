// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package dashboard

import (
	"context"
	"sync"

	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/sources"
)

// buildStrategic renders consolidated cross-source ratios. CRM and accounting
// are required; marketing enriches when configured.
func buildStrategic(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	crm, err := s.dir.CRM(ctx, tenant)
	if err != nil {
		return nil, err
	}
	accounting, err := s.dir.Accounting(ctx, tenant)
	if err != nil {
		return nil, err
	}

	type periodData struct {
		deals   *sources.DealSummary
		finance *sources.FinanceSummary
	}
	fetch := func(ctx context.Context, r models.DateRange) (*periodData, error) {
		var (
			wg              sync.WaitGroup
			data            periodData
			dealErr, finErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			data.deals, dealErr = crm.DealSummary(ctx, r)
		}()
		go func() {
			defer wg.Done()
			data.finance, finErr = accounting.FinanceSummary(ctx, r)
		}()
		wg.Wait()
		if dealErr != nil {
			return nil, dealErr
		}
		if finErr != nil {
			return nil, finErr
		}
		return &data, nil
	}

	current, previous, hasPrev, err := fetchPeriods(ctx, rng, compare, fetch)
	if err != nil {
		return nil, err
	}

	summary := []models.KpiValue{
		percentKPI("net-margin", "Margem líquida", netMargin(current.finance),
			floatTrendWhen(hasPrev, compare, netMargin(current.finance), func() float64 { return netMargin(previous.finance) })),
		currencyKPI("revenue-per-deal", "Receita por negócio", revenuePerDeal(current.finance, current.deals),
			floatTrendWhen(hasPrev, compare, revenuePerDeal(current.finance, current.deals), func() float64 { return revenuePerDeal(previous.finance, previous.deals) })),
		percentKPI("pipeline-coverage", "Cobertura de pipeline", pipelineCoverage(current.finance, current.deals), nil),
	}

	// Marketing conversion is best-effort: missing credentials drop the KPI.
	if marketing, merr := s.dir.Marketing(ctx, tenant); merr == nil {
		if stats, serr := marketing.MarketingStats(ctx, rng); serr == nil {
			summary = append(summary, percentKPI("lead-conversion", "Conversão lead → venda",
				conversionRate(current.deals.WonCount, stats.NewContacts), nil))
		} else {
			logging.Warn().Err(serr).Str("tenant", tenant.Slug).
				Msg("Marketing stats unavailable for strategic module")
		}
	}

	return &models.ModulePayload{
		ModuleID: "strategic",
		Title:    "Estratégico",
		Summary:  summary,
	}, nil
}

func netMargin(f *sources.FinanceSummary) float64 {
	if f == nil || f.Revenue == 0 {
		return 0
	}
	return f.NetIncome / f.Revenue * 100
}

func revenuePerDeal(f *sources.FinanceSummary, d *sources.DealSummary) float64 {
	if f == nil || d == nil || d.WonCount == 0 {
		return 0
	}
	return f.Revenue / float64(d.WonCount)
}

func pipelineCoverage(f *sources.FinanceSummary, d *sources.DealSummary) float64 {
	if f == nil || d == nil || f.Revenue == 0 {
		return 0
	}
	return d.OpenValue / f.Revenue * 100
}

func conversionRate(won, newContacts int) float64 {
	if newContacts == 0 {
		return 0
	}
	return float64(won) / float64(newContacts) * 100
}

// floatTrendWhen defers the previous-period computation so a nil previous is
// never dereferenced when the comparison fetch failed.
func floatTrendWhen(hasPrev, compare bool, current float64, previous func() float64) *models.Trend {
	if !hasPrev {
		return floatTrend(current, 0, false, compare)
	}
	return floatTrend(current, previous(), true, compare)
}

// overviewSection is one source's contribution to the overview module.
type overviewSection struct {
	source string
	kpis   []models.KpiValue
	err    error
}

// buildOverview renders one headline figure per configured source. A source
// that is unconfigured or failing is reported offline instead of failing the
// whole module; the module errors only when no source produced data.
func buildOverview(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	fetchers := []struct {
		source string
		fetch  func() ([]models.KpiValue, error)
	}{
		{sources.SourceCRM, func() ([]models.KpiValue, error) {
			client, err := s.dir.CRM(ctx, tenant)
			if err != nil {
				return nil, err
			}
			d, err := client.DealSummary(ctx, rng)
			if err != nil {
				return nil, err
			}
			return []models.KpiValue{
				currencyKPI("crm-won-value", "Receita fechada", d.WonValue, nil),
				numberKPI("crm-won-count", "Negócios ganhos", d.WonCount, nil),
			}, nil
		}},
		{sources.SourceAccounting, func() ([]models.KpiValue, error) {
			client, err := s.dir.Accounting(ctx, tenant)
			if err != nil {
				return nil, err
			}
			f, err := client.FinanceSummary(ctx, rng)
			if err != nil {
				return nil, err
			}
			return []models.KpiValue{
				currencyKPI("finance-net-income", "Resultado líquido", f.NetIncome, nil),
			}, nil
		}},
		{sources.SourceMarketing, func() ([]models.KpiValue, error) {
			client, err := s.dir.Marketing(ctx, tenant)
			if err != nil {
				return nil, err
			}
			m, err := client.MarketingStats(ctx, rng)
			if err != nil {
				return nil, err
			}
			return []models.KpiValue{
				numberKPI("marketing-new-contacts", "Novos contatos", m.NewContacts, nil),
			}, nil
		}},
		{sources.SourceSocial, func() ([]models.KpiValue, error) {
			client, err := s.dir.Social(ctx, tenant)
			if err != nil {
				return nil, err
			}
			st, err := client.SocialStats(ctx, rng)
			if err != nil {
				return nil, err
			}
			return []models.KpiValue{
				numberKPI("social-followers", "Seguidores", st.Followers, nil),
			}, nil
		}},
		{sources.SourceChat, func() ([]models.KpiValue, error) {
			client, err := s.dir.Chat(ctx, tenant)
			if err != nil {
				return nil, err
			}
			st, err := client.CommunityStats(ctx)
			if err != nil {
				return nil, err
			}
			return []models.KpiValue{
				numberKPI("community-members", "Membros na comunidade", st.TotalMembers, nil),
			}, nil
		}},
		{sources.SourceLearning, func() ([]models.KpiValue, error) {
			client, err := s.dir.Learning(ctx, tenant)
			if err != nil {
				return nil, err
			}
			st, err := client.LearningStats(ctx, rng)
			if err != nil {
				return nil, err
			}
			return []models.KpiValue{
				numberKPI("academy-active-students", "Alunos ativos", st.ActiveStudents, nil),
			}, nil
		}},
		{sources.SourceInvestment, func() ([]models.KpiValue, error) {
			client, err := s.dir.Investment(ctx, tenant)
			if err != nil {
				return nil, err
			}
			st, err := client.InvestmentStats(ctx, rng)
			if err != nil {
				return nil, err
			}
			return []models.KpiValue{
				currencyKPI("investments-total", "Total investido", st.TotalInvested, nil),
			}, nil
		}},
	}

	sections := make([]overviewSection, len(fetchers))
	var wg sync.WaitGroup
	wg.Add(len(fetchers))
	for i, f := range fetchers {
		go func() {
			defer wg.Done()
			kpis, err := f.fetch()
			sections[i] = overviewSection{source: f.source, kpis: kpis, err: err}
		}()
	}
	wg.Wait()

	var (
		summary []models.KpiValue
		rows    []models.TableRow
		lastErr error
	)
	for _, sec := range sections {
		status := "online"
		if sec.err != nil {
			status = "offline"
			lastErr = sec.err
			logging.Warn().Err(sec.err).Str("tenant", tenant.Slug).
				Str("source", sec.source).Msg("Overview source unavailable")
		} else {
			summary = append(summary, sec.kpis...)
		}
		rows = append(rows, models.TableRow{"source": sec.source, "status": status})
	}

	if len(summary) == 0 {
		return nil, lastErr
	}

	return &models.ModulePayload{
		ModuleID: "overview",
		Title:    "Visão Geral",
		Summary:  summary,
		Tables: []models.Table{{
			ID:    "source-availability",
			Title: "Disponibilidade das fontes",
			Columns: []models.TableColumn{
				{ID: "source", Label: "Fonte"},
				{ID: "status", Label: "Status"},
			},
			Rows: rows,
		}},
	}, nil
}
