// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockServer struct {
	mu        sync.Mutex
	listenErr error
	shutdown  bool
	block     chan struct{}
}

func newMockServer(listenErr error) *mockServer {
	return &mockServer{listenErr: listenErr, block: make(chan struct{})}
}

func (m *mockServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.block
	return nil
}

func (m *mockServer) Shutdown(context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
	close(m.block)
	return nil
}

func (m *mockServer) wasShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newMockServer(nil)
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	if !server.wasShutdown() {
		t.Error("Expected a graceful Shutdown call")
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	listenErr := errors.New("address in use")
	svc := NewHTTPServerService(newMockServer(listenErr), time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, listenErr) {
		t.Errorf("Serve() = %v, want wrapped listen error", err)
	}
}

type mockMaintenanceStore struct {
	mu       sync.Mutex
	journeys int
	statuses int
}

func (m *mockMaintenanceStore) DeleteExpiredJourneys(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journeys++
	return 2, nil
}

func (m *mockMaintenanceStore) PruneAPIStatus(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses++
	return 5, nil
}

func (m *mockMaintenanceStore) sweeps() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journeys, m.statuses
}

func TestMaintenanceServiceSweeps(t *testing.T) {
	store := &mockMaintenanceStore{}
	svc := NewMaintenanceService(store, 15*time.Millisecond, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}

	journeys, statuses := store.sweeps()
	if journeys == 0 || statuses == 0 {
		t.Errorf("Sweeps = %d/%d, want at least one of each", journeys, statuses)
	}
}
