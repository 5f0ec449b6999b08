// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// KpiSnapshot is an immutable, dated copy of one KPI module payload.
// Rows are append-only: a second run on the same day produces a second row
// for the same (tenant, domain, day), and readers must pick the most recent
// by CreatedAt rather than assume uniqueness.
type KpiSnapshot struct {
	ID           string          `json:"id"`
	TenantID     *int64          `json:"tenantId"`
	SnapshotDate time.Time       `json:"snapshotDate"` // truncated to midnight
	Domain       string          `json:"domain"`
	SourceName   string          `json:"sourceName"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// SourceStatus is the observed availability of an external source.
type SourceStatus string

const (
	SourceOnline  SourceStatus = "online"
	SourceOffline SourceStatus = "offline"
)

// APICallRecord is one row of the append-only external-call audit trail,
// written after every upstream call attempt. The status dashboard reads the
// latest row per source.
type APICallRecord struct {
	ID             string       `json:"id"`
	SourceName     string       `json:"sourceName"`
	TenantID       *int64       `json:"tenantId,omitempty"`
	Status         SourceStatus `json:"status"`
	Endpoint       string       `json:"endpoint"`
	ErrorMessage   string       `json:"errorMessage,omitempty"`
	ResponseTimeMs *int64       `json:"responseTimeMs,omitempty"`
	CheckedAt      time.Time    `json:"checkedAt"`
}
