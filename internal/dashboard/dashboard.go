// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package dashboard computes the per-tenant KPI module payloads. Each module
// is a pure function over one or more source summaries for a date range;
// results are cached for 30 minutes and invalidated after snapshot runs.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/kpideck/kpideck/internal/cache"
	"github.com/kpideck/kpideck/internal/kpi"
	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/sources"
)

// DefaultCacheTTL is how long computed payloads stay valid. A snapshot run
// invalidates earlier.
const DefaultCacheTTL = 30 * time.Minute

// TenantStore resolves tenant slugs. database.DB satisfies it.
type TenantStore interface {
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)
}

// SourceDirectory hands out configured source clients per tenant.
// sources.Directory satisfies it.
type SourceDirectory interface {
	CRM(ctx context.Context, tenant *models.Tenant) (sources.CRMClient, error)
	Accounting(ctx context.Context, tenant *models.Tenant) (sources.AccountingClient, error)
	Chat(ctx context.Context, tenant *models.Tenant) (sources.ChatClient, error)
	Social(ctx context.Context, tenant *models.Tenant) (sources.SocialClient, error)
	Learning(ctx context.Context, tenant *models.Tenant) (sources.LearningClient, error)
	Marketing(ctx context.Context, tenant *models.Tenant) (sources.MarketingClient, error)
	Investment(ctx context.Context, tenant *models.Tenant) (sources.InvestmentClient, error)
}

// Service computes and caches dashboard module payloads.
type Service struct {
	tenants  TenantStore
	dir      SourceDirectory
	cache    *cache.Cache
	cacheTTL time.Duration
}

// New builds the dashboard service. cacheTTL <= 0 selects DefaultCacheTTL.
func New(tenants TenantStore, dir SourceDirectory, c *cache.Cache, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Service{tenants: tenants, dir: dir, cache: c, cacheTTL: cacheTTL}
}

// buildFunc computes one module payload for a resolved tenant.
type buildFunc func(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error)

type moduleDef struct {
	ID    string
	Title string
	Build buildFunc
}

// registry lists every dashboard module in display order. Data, not code:
// adding a module means adding a row and its build function.
var registry = []moduleDef{
	{ID: "overview", Title: "Visão Geral", Build: buildOverview},
	{ID: "sales", Title: "Vendas", Build: buildSales},
	{ID: "finance", Title: "Financeiro", Build: buildFinance},
	{ID: "marketing", Title: "Marketing", Build: buildMarketing},
	{ID: "social", Title: "Social", Build: buildSocial},
	{ID: "community", Title: "Comunidade", Build: buildCommunity},
	{ID: "academy", Title: "Academy", Build: buildAcademy},
	{ID: "investments", Title: "Investimentos", Build: buildInvestments},
	{ID: "strategic", Title: "Estratégico", Build: buildStrategic},
}

var moduleIndex = func() map[string]moduleDef {
	idx := make(map[string]moduleDef, len(registry))
	for _, def := range registry {
		idx[def.ID] = def
	}
	return idx
}()

// ModuleIDs returns every registered module id in display order.
func ModuleIDs() []string {
	ids := make([]string, len(registry))
	for i, def := range registry {
		ids[i] = def.ID
	}
	return ids
}

// Compute resolves the tenant, serves the payload from cache when fresh, and
// otherwise builds it from the source clients. The bool reports a cache hit.
func (s *Service) Compute(ctx context.Context, slug, moduleID string, rng models.DateRange, compare bool) (*models.ModulePayload, bool, error) {
	def, ok := moduleIndex[moduleID]
	if !ok {
		return nil, false, &models.ModuleNotFoundError{ModuleID: moduleID}
	}

	tenant, err := s.tenants.GetTenantBySlug(ctx, slug)
	if err != nil {
		return nil, false, err
	}

	key := cacheKey(tenant.Slug, def.ID, rng, compare)
	if s.cache != nil {
		if cached, hit := s.cache.Get(key); hit {
			if payload, ok := cached.(*models.ModulePayload); ok {
				metrics.CacheHits.WithLabelValues("dashboard").Inc()
				return payload, true, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("dashboard").Inc()
	}

	start := time.Now()
	payload, err := def.Build(s, ctx, tenant, rng, compare)
	if err != nil {
		return nil, false, err
	}
	logging.Debug().
		Str("tenant", tenant.Slug).
		Str("module", def.ID).
		Str("range", rng.String()).
		Dur("elapsed", time.Since(start)).
		Msg("Dashboard module computed")

	if s.cache != nil {
		s.cache.SetWithTTL(key, payload, s.cacheTTL)
	}
	return payload, false, nil
}

// InvalidateTenant drops every cached payload for one tenant and returns the
// number of entries removed.
func (s *Service) InvalidateTenant(slug string) int {
	if s.cache == nil {
		return 0
	}
	removed := s.cache.InvalidatePattern("dashboard:" + slug + ":")
	if removed > 0 {
		metrics.CacheInvalidations.WithLabelValues("dashboard").Add(float64(removed))
	}
	return removed
}

// cacheKey keeps the tenant slug and module id outside the hash so substring
// invalidation per tenant works.
func cacheKey(slug, moduleID string, rng models.DateRange, compare bool) string {
	return cache.GenerateKey("dashboard:"+slug+":"+moduleID, struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Compare bool   `json:"compare"`
	}{rng.From.Format("2006-01-02"), rng.To.Format("2006-01-02"), compare})
}

// fetchPeriods fetches the current period and, when compare is set, the
// previous period concurrently. A previous-period failure degrades to no
// trend rather than failing the module.
func fetchPeriods[T any](ctx context.Context, rng models.DateRange, compare bool, fetch func(context.Context, models.DateRange) (T, error)) (current T, previous T, hasPrevious bool, err error) {
	if !compare {
		current, err = fetch(ctx, rng)
		return current, previous, false, err
	}

	prevRange := kpi.PreviousPeriod(rng)
	var (
		wg      sync.WaitGroup
		prevErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		current, err = fetch(ctx, rng)
	}()
	go func() {
		defer wg.Done()
		previous, prevErr = fetch(ctx, prevRange)
	}()
	wg.Wait()

	if err != nil {
		return current, previous, false, err
	}
	if prevErr != nil {
		logging.Warn().Err(prevErr).Str("range", prevRange.String()).
			Msg("Previous period fetch failed, trends omitted")
		return current, previous, false, nil
	}
	return current, previous, true, nil
}
