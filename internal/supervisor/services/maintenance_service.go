// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package services

import (
	"context"
	"time"

	"github.com/kpideck/kpideck/internal/logging"
)

// MaintenanceStore is the pruning surface of the database. database.DB
// satisfies it.
type MaintenanceStore interface {
	DeleteExpiredJourneys(ctx context.Context, now time.Time) (int64, error)
	PruneAPIStatus(ctx context.Context, olderThan time.Time) (int64, error)
}

// MaintenanceService sweeps expired journey rows and old api-status audit
// rows on a fixed interval. Expiry is already enforced on every read; the
// sweep only reclaims storage.
type MaintenanceService struct {
	store           MaintenanceStore
	interval        time.Duration
	statusRetention time.Duration
}

// NewMaintenanceService builds the sweep job. Zero values select one-hour
// sweeps and seven-day audit retention.
func NewMaintenanceService(store MaintenanceStore, interval, statusRetention time.Duration) *MaintenanceService {
	if interval <= 0 {
		interval = time.Hour
	}
	if statusRetention <= 0 {
		statusRetention = 7 * 24 * time.Hour
	}
	return &MaintenanceService{store: store, interval: interval, statusRetention: statusRetention}
}

// Serve implements suture.Service.
func (m *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *MaintenanceService) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	now := time.Now().UTC()
	journeys, err := m.store.DeleteExpiredJourneys(sweepCtx, now)
	if err != nil {
		logging.Warn().Err(err).Msg("Journey sweep failed")
	}
	statuses, err := m.store.PruneAPIStatus(sweepCtx, now.Add(-m.statusRetention))
	if err != nil {
		logging.Warn().Err(err).Msg("Api status sweep failed")
	}
	if journeys > 0 || statuses > 0 {
		logging.Info().
			Int64("journeys", journeys).
			Int64("api_status", statuses).
			Msg("Maintenance sweep reclaimed rows")
	}
}

func (m *MaintenanceService) String() string { return "maintenance-sweeper" }
