// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package snapshot persists the nightly KPI history. Each run walks a fixed
// set of units (tenant x dashboard module, plus a consolidated cross-tenant
// row), computes the payload for the trailing window, and appends one
// immutable row per unit. A failing unit never stops the run.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/kpideck/kpideck/internal/kpi"
	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
)

// Store is the persistence surface for snapshot rows.
type Store interface {
	InsertSnapshot(ctx context.Context, snap *models.KpiSnapshot) error
}

// ModuleComputer computes dashboard payloads. dashboard.Service satisfies it.
type ModuleComputer interface {
	Compute(ctx context.Context, slug, moduleID string, rng models.DateRange, compare bool) (*models.ModulePayload, bool, error)
	InvalidateTenant(slug string) int
}

// PayloadFunc computes one unit's payload for the snapshot window.
type PayloadFunc func(ctx context.Context, rng models.DateRange) (json.RawMessage, error)

// Unit is one item of snapshot work. TenantID is nil for the consolidated
// cross-tenant row.
type Unit struct {
	Name       string
	TenantID   *int64
	TenantSlug string
	Domain     string
	Fetch      PayloadFunc
}

// UnitFailure records one contained unit failure.
type UnitFailure struct {
	Unit  string `json:"unit"`
	Error string `json:"error"`
}

// Result is the accounting for one snapshot run.
type Result struct {
	Trigger    string        `json:"trigger"`
	RanAt      time.Time     `json:"ranAt"`
	Date       time.Time     `json:"date"`
	Success    int           `json:"success"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
	Failures   []UnitFailure `json:"failures,omitempty"`
	TotalUnits int           `json:"totalUnits"`
}

// Service executes snapshot runs over a fixed unit set.
type Service struct {
	store        Store
	units        []Unit
	lookbackDays int
	unitTimeout  time.Duration
	invalidate   func(slug string) int
}

// New builds the snapshot service. invalidate is called with each tenant slug
// that got a fresh snapshot row, so stale dashboard payloads drop immediately;
// nil disables invalidation.
func New(store Store, units []Unit, lookbackDays int, unitTimeout time.Duration, invalidate func(slug string) int) *Service {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	if unitTimeout <= 0 {
		unitTimeout = 2 * time.Minute
	}
	return &Service{
		store:        store,
		units:        units,
		lookbackDays: lookbackDays,
		unitTimeout:  unitTimeout,
		invalidate:   invalidate,
	}
}

// ExecuteAll runs every unit once and returns the per-run accounting. The
// run itself never fails: unit errors are contained, counted, and logged.
// Scheduled and manual triggers share this exact path.
func (s *Service) ExecuteAll(ctx context.Context, trigger string) Result {
	start := time.Now()
	day := models.TruncateToDay(start)
	rng := kpi.TrailingDays(start, s.lookbackDays)

	result := Result{
		Trigger:    trigger,
		RanAt:      start.UTC(),
		Date:       day,
		TotalUnits: len(s.units),
	}
	logging.Info().
		Str("trigger", trigger).
		Int("units", len(s.units)).
		Str("range", rng.String()).
		Msg("Snapshot run started")

	invalidated := make(map[string]bool)
	for _, unit := range s.units {
		if err := s.executeUnit(ctx, unit, day, rng); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, UnitFailure{Unit: unit.Name, Error: err.Error()})
			logging.Warn().Err(err).Str("unit", unit.Name).Msg("Snapshot unit failed")
			continue
		}
		result.Success++
		if s.invalidate != nil && unit.TenantSlug != "" && !invalidated[unit.TenantSlug] {
			s.invalidate(unit.TenantSlug)
			invalidated[unit.TenantSlug] = true
		}
	}

	result.Duration = time.Since(start)
	metrics.RecordSnapshotRun(trigger, result.Success, result.Failed, result.Duration)
	logging.Info().
		Str("trigger", trigger).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Dur("elapsed", result.Duration).
		Msg("Snapshot run finished")
	return result
}

// executeUnit computes and persists one unit under its own timeout. Panics
// inside a unit are contained like errors.
func (s *Service) executeUnit(ctx context.Context, unit Unit, day time.Time, rng models.DateRange) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panicked: %v", r)
		}
	}()

	unitCtx, cancel := context.WithTimeout(ctx, s.unitTimeout)
	defer cancel()

	payload, err := unit.Fetch(unitCtx, rng)
	if err != nil {
		return err
	}

	return s.store.InsertSnapshot(unitCtx, &models.KpiSnapshot{
		TenantID:     unit.TenantID,
		SnapshotDate: day,
		Domain:       unit.Domain,
		SourceName:   unit.Name,
		Payload:      payload,
	})
}

// BuildUnits derives the unit set from the tenant registry and the dashboard
// module list: one unit per active tenant and module, plus one consolidated
// cross-tenant overview unit with a nil tenant id.
func BuildUnits(tenants []models.Tenant, moduleIDs []string, computer ModuleComputer) []Unit {
	var units []Unit
	var active []models.Tenant
	for _, t := range tenants {
		if t.Active {
			active = append(active, t)
		}
	}

	for _, tenant := range active {
		for _, moduleID := range moduleIDs {
			id := tenant.ID
			slug := tenant.Slug
			mod := moduleID
			units = append(units, Unit{
				Name:       slug + ":" + mod,
				TenantID:   &id,
				TenantSlug: slug,
				Domain:     mod,
				Fetch: func(ctx context.Context, rng models.DateRange) (json.RawMessage, error) {
					payload, _, err := computer.Compute(ctx, slug, mod, rng, false)
					if err != nil {
						return nil, err
					}
					return json.Marshal(payload)
				},
			})
		}
	}

	units = append(units, Unit{
		Name:   "consolidated:overview",
		Domain: "overview",
		Fetch: func(ctx context.Context, rng models.DateRange) (json.RawMessage, error) {
			return consolidatedPayload(ctx, active, computer, rng)
		},
	})
	return units
}

// consolidatedPayload merges every tenant's overview into one cross-tenant
// document. A tenant whose overview fails is recorded with its error; the
// consolidated row fails only when every tenant does.
func consolidatedPayload(ctx context.Context, tenants []models.Tenant, computer ModuleComputer, rng models.DateRange) (json.RawMessage, error) {
	type tenantOverview struct {
		Tenant  string                `json:"tenant"`
		Payload *models.ModulePayload `json:"payload,omitempty"`
		Error   string                `json:"error,omitempty"`
	}

	overviews := make([]tenantOverview, 0, len(tenants))
	failures := 0
	for _, tenant := range tenants {
		payload, _, err := computer.Compute(ctx, tenant.Slug, "overview", rng, false)
		if err != nil {
			failures++
			overviews = append(overviews, tenantOverview{Tenant: tenant.Slug, Error: err.Error()})
			continue
		}
		overviews = append(overviews, tenantOverview{Tenant: tenant.Slug, Payload: payload})
	}
	if len(tenants) > 0 && failures == len(tenants) {
		return nil, fmt.Errorf("overview failed for all %d tenants", len(tenants))
	}

	return json.Marshal(struct {
		Tenants []tenantOverview `json:"tenants"`
	}{overviews})
}
