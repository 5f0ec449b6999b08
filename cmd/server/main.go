// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package main is the entry point for the KPIDeck server.
//
// KPIDeck aggregates business KPIs for multiple tenants from external
// platforms (CRM, accounting, marketing automation, chat, social, learning,
// investment) into per-tenant dashboards, resolves full customer journeys by
// email, and persists an append-only daily snapshot history.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, env vars)
//  2. Logging: zerolog, configured from the loaded settings
//  3. Database: DuckDB storage with the tenant registry seeded on first run
//  4. Credential encryptor: AES-256-GCM over stored integrations
//  5. Source directory: per-tenant clients with circuit breakers
//  6. Dashboard, journey, and snapshot services
//  7. Supervisor tree: snapshot scheduler and maintenance jobs isolated from
//     the HTTP layer
//
// # Configuration
//
// Credentials come from stored per-tenant integrations first, then from
// environment defaults (PIPEDRIVE_API_TOKEN, MAUTIC_BASE_URL, and so on; see
// config.Load for the full mapping).
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the scheduler stops, and the database closes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kpideck/kpideck/internal/api"
	"github.com/kpideck/kpideck/internal/cache"
	"github.com/kpideck/kpideck/internal/config"
	"github.com/kpideck/kpideck/internal/dashboard"
	"github.com/kpideck/kpideck/internal/database"
	"github.com/kpideck/kpideck/internal/journey"
	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/snapshot"
	"github.com/kpideck/kpideck/internal/sources"
	"github.com/kpideck/kpideck/internal/supervisor"
	"github.com/kpideck/kpideck/internal/supervisor/services"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("Starting KPIDeck")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("db_path", cfg.Database.Path).Msg("Database initialized")

	encryptor, err := config.NewCredentialEncryptor(cfg.Security.EncryptionSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential encryptor")
	}

	payloadCache := cache.New(cfg.Cache.DashboardTTL)
	directory := sources.NewDirectory(db, encryptor, &cfg.Sources, db)
	dashboards := dashboard.New(db, directory, payloadCache, cfg.Cache.DashboardTTL)

	journeys := buildJourneyService(db, directory, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	var scheduler *snapshot.Scheduler
	if cfg.Snapshots.Enabled {
		tenants, err := db.ListTenants(ctx)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to list tenants for snapshot units")
		}
		units := snapshot.BuildUnits(tenants, dashboard.ModuleIDs(), dashboards)
		snapService := snapshot.New(db, units, cfg.Snapshots.LookbackDays,
			cfg.Snapshots.UnitTimeout, dashboards.InvalidateTenant)

		runAt, err := config.ParseRunAt(cfg.Snapshots.RunAt)
		if err != nil {
			logging.Fatal().Err(err).Msg("Invalid snapshot schedule")
		}
		scheduler = snapshot.NewScheduler(snapService, runAt.Hour, runAt.Minute)
		tree.AddJobService(scheduler)
		logging.Info().
			Str("run_at", cfg.Snapshots.RunAt).
			Int("units", len(units)).
			Msg("Snapshot scheduler enabled")
	} else {
		logging.Info().Msg("Snapshot scheduler disabled")
	}

	tree.AddJobService(services.NewMaintenanceService(db, time.Hour, 7*24*time.Hour))

	handler := api.NewHandler(db, db, db, dashboards, journeysOrNil(journeys), runnerOrNil(scheduler), version)
	router := api.NewRouter(handler, &cfg.Server)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", httpServer.Addr).Msg("KPIDeck listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("Supervisor tree failed")
		}
	}

	if journeys != nil {
		journeys.WaitForEnrichment()
	}
	logging.Info().Msg("Shutdown complete")
}

// buildJourneyService wires the two journey sources from environment-level
// defaults. Journey lookups are not tenant-scoped: the marketing and CRM
// platforms hold one shared contact base.
//
// Missing credentials are a normal state, not a boot failure: without a
// marketing source the service is nil and the journey endpoints report 409
// while dashboards and snapshots stay fully operational.
func buildJourneyService(db *database.DB, directory *sources.Directory, cfg *config.Config) *journey.Service {
	// The journey sources resolve against the first active tenant so stored
	// integrations still take precedence over env defaults.
	tenants, err := db.ListTenants(context.Background())
	if err != nil {
		logging.Warn().Err(err).Msg("Tenant list unavailable, journey endpoints disabled")
		return nil
	}
	var primary *models.Tenant
	for i := range tenants {
		if tenants[i].Active {
			primary = &tenants[i]
			break
		}
	}
	if primary == nil {
		logging.Warn().Msg("No active tenant, journey endpoints disabled")
		return nil
	}

	marketing, err := directory.Marketing(context.Background(), primary)
	if err != nil {
		logging.Warn().Err(err).Msg("Marketing source not configured, journey endpoints disabled")
		return nil
	}
	crm, err := directory.CRM(context.Background(), primary)
	if err != nil {
		logging.Warn().Err(err).Msg("CRM unavailable for journeys, running marketing-only")
		crm = nil
	}
	return journey.New(db, marketing, crm, cfg.Journey.TTL, cfg.Journey.FetchTimeout)
}

// runnerOrNil keeps the handler's nil check simple when the scheduler is
// disabled.
func runnerOrNil(s *snapshot.Scheduler) api.SnapshotRunner {
	if s == nil {
		return nil
	}
	return s
}

// journeysOrNil avoids handing the handler a typed-nil interface when the
// journey service could not be built.
func journeysOrNil(s *journey.Service) api.JourneyService {
	if s == nil {
		return nil
	}
	return s
}
