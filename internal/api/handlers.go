// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package api

import (
	"context"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kpideck/kpideck/internal/journey"
	"github.com/kpideck/kpideck/internal/kpi"
	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/snapshot"
)

// TenantReader lists and resolves tenants. database.DB satisfies it.
type TenantReader interface {
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// SnapshotReader serves the snapshot read path. database.DB satisfies it.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context, tenantID *int64, domain string, day time.Time) (*models.KpiSnapshot, error)
	CountSnapshotsForDay(ctx context.Context, day time.Time) (int, error)
}

// StatusReader serves the source availability board. database.DB satisfies it.
type StatusReader interface {
	LatestAPIStatus(ctx context.Context) ([]models.APICallRecord, error)
}

// DashboardService computes module payloads. dashboard.Service satisfies it.
type DashboardService interface {
	Compute(ctx context.Context, slug, moduleID string, rng models.DateRange, compare bool) (*models.ModulePayload, bool, error)
}

// JourneyService resolves identities. journey.Service satisfies it.
type JourneyService interface {
	Lookup(ctx context.Context, identity string, force bool, searchedBy string) (*journey.Result, error)
	History(ctx context.Context, limit int) ([]models.SearchHistoryEntry, error)
}

// SnapshotRunner is the manual snapshot trigger. snapshot.Scheduler satisfies
// it.
type SnapshotRunner interface {
	RunNow(ctx context.Context) snapshot.Result
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	tenants    TenantReader
	snapshots  SnapshotReader
	statuses   StatusReader
	dashboards DashboardService
	journeys   JourneyService
	runner     SnapshotRunner
	version    string
	startedAt  time.Time
}

// NewHandler wires the handler dependencies. runner may be nil when the
// scheduler is disabled; the manual trigger then reports 503. journeys may
// be nil when the marketing source has no credentials at all; the journey
// endpoints then report 409 until credentials are added.
func NewHandler(tenants TenantReader, snapshots SnapshotReader, statuses StatusReader,
	dashboards DashboardService, journeys JourneyService, runner SnapshotRunner, version string) *Handler {
	return &Handler{
		tenants:    tenants,
		snapshots:  snapshots,
		statuses:   statuses,
		dashboards: dashboards,
		journeys:   journeys,
		runner:     runner,
		version:    version,
		startedAt:  time.Now(),
	}
}

// Health reports liveness plus the snapshot coverage for today.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	data := map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if count, err := h.snapshots.CountSnapshotsForDay(r.Context(), time.Now()); err == nil {
		data["snapshots_today"] = count
	}
	rw.Success(data, false)
}

// Tenants lists the tenant registry.
func (h *Handler) Tenants(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	tenants, err := h.tenants.ListTenants(r.Context())
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(tenants, false)
}

// DashboardModule computes one module payload for a tenant and range.
// Query params: from, to (YYYY-MM-DD, default trailing 30 days), compare.
func (h *Handler) DashboardModule(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	rng, err := kpi.ParseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), time.Now())
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	compare := parseBool(r.URL.Query().Get("compare"))

	payload, cached, err := h.dashboards.Compute(r.Context(),
		chi.URLParam(r, "slug"), chi.URLParam(r, "module"), rng, compare)
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(payload, cached)
}

// DashboardSnapshot serves the latest persisted snapshot row for a tenant,
// module, and day. Query param: date (YYYY-MM-DD, default today).
func (h *Handler) DashboardSnapshot(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			rw.BadRequest("invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	tenant, err := h.tenants.GetTenantBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		rw.FromError(err)
		return
	}

	snap, err := h.snapshots.LatestSnapshot(r.Context(), &tenant.ID, chi.URLParam(r, "module"), day)
	if err != nil {
		rw.FromError(err)
		return
	}

	rw.Success(map[string]interface{}{
		"snapshotDate": snap.SnapshotDate.Format("2006-01-02"),
		"createdAt":    snap.CreatedAt,
		"payload":      json.RawMessage(snap.Payload),
	}, false)
}

// JourneyLookup resolves the full journey for an email. Query param:
// refresh=true bypasses the 24h cache.
func (h *Handler) JourneyLookup(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	if h.journeys == nil {
		rw.FromError(&models.SourceNotConfiguredError{Source: "marketing"})
		return
	}

	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if _, err := mail.ParseAddress(email); err != nil {
		rw.BadRequest("invalid email address")
		return
	}

	searchedBy := r.Header.Get("X-Requested-By")
	if searchedBy == "" {
		searchedBy = "dashboard"
	}

	result, err := h.journeys.Lookup(r.Context(), email, parseBool(r.URL.Query().Get("refresh")), searchedBy)
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(result.Record, result.Cached)
}

// JourneyHistory lists recent journey searches. Query param: limit (<= 200).
func (h *Handler) JourneyHistory(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	if h.journeys == nil {
		rw.FromError(&models.SourceNotConfiguredError{Source: "marketing"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			rw.BadRequest("limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	entries, err := h.journeys.History(r.Context(), limit)
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(entries, false)
}

// SnapshotsRun triggers a full snapshot run immediately, sharing the exact
// execution path of the nightly schedule.
func (h *Handler) SnapshotsRun(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	if h.runner == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeInternal, "snapshot scheduler is disabled", nil)
		return
	}
	rw.Success(h.runner.RunNow(r.Context()), false)
}

// Status serves the latest availability row per external source.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)

	records, err := h.statuses.LatestAPIStatus(r.Context())
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(records, false)
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}
