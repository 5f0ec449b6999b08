// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package snapshot

import (
	"context"
	"time"

	"github.com/kpideck/kpideck/internal/logging"
)

// Scheduler fires the snapshot service once per day at a fixed local clock
// time. Manual triggers run the identical ExecuteAll path and do not disturb
// the daily timer.
type Scheduler struct {
	svc    *Service
	hour   int
	minute int

	// now is replaceable in tests.
	now func() time.Time
}

// NewScheduler builds a scheduler firing daily at hour:minute server-local
// time.
func NewScheduler(svc *Service, hour, minute int) *Scheduler {
	return &Scheduler{svc: svc, hour: hour, minute: minute, now: time.Now}
}

// Serve runs the scheduling loop until the context is cancelled. It satisfies
// suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	for {
		next := s.nextRun(s.now())
		logging.Info().Time("next_run", next).Msg("Snapshot scheduler armed")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.svc.ExecuteAll(ctx, "scheduled")
		}
	}
}

// RunNow executes one full snapshot run immediately. It is the manual
// trigger behind POST /api/v1/snapshots/run.
func (s *Scheduler) RunNow(ctx context.Context) Result {
	return s.svc.ExecuteAll(ctx, "manual")
}

// nextRun returns the next hour:minute occurrence strictly after now, in
// now's location.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) String() string { return "snapshot-scheduler" }
