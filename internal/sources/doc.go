// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package sources contains the clients for the third-party systems the
// dashboard aggregates: CRM deals, accounting, community chat, social media,
// the learning platform, marketing automation, and the investment platform.
//
// Each source is exposed through a small interface so dashboard modules and
// the journey service can be tested with fakes. Concrete clients share a
// common HTTP core (timeouts, client-side rate limiting, 429 backoff,
// audit-trail recording) and are wrapped in a circuit breaker.
//
// Credentials resolve per tenant: a stored integration row wins, environment
// defaults fill the gap, and a missing pair yields SourceNotConfiguredError
// with a remediation hint.
package sources
