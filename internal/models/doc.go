// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package models defines the shared data structures for KPIDeck.
//
// The package has no dependencies on other internal packages and is imported
// by everything else. It contains:
//
//   - Dashboard payload contract: ModulePayload, KpiValue, Trend, Chart, Table
//   - Temporal value types: DateRange
//   - Journey cache records: JourneyRecord, SearchHistoryEntry
//   - Persistence rows: KpiSnapshot, APICallRecord, Tenant, Integration
//   - The domain error taxonomy: TenantNotFoundError, SourceNotConfiguredError,
//     UpstreamError, LookupFailedError, ErrStorageUnavailable
package models
