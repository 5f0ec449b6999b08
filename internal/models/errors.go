// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Wrap with fmt.Errorf("...: %w", err)
// and test with errors.Is.
var (
	// ErrStorageUnavailable indicates the persistence layer cannot serve the
	// request. Read paths degrade to uncached computation; write paths that
	// only persist caches swallow it after logging.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIdentityNotFound indicates the authoritative marketing source has no
	// contact for the requested identity. Nothing is cached for this outcome.
	ErrIdentityNotFound = errors.New("identity not found")
)

// TenantNotFoundError is returned when a tenant slug does not resolve.
type TenantNotFoundError struct {
	Slug string
}

func (e *TenantNotFoundError) Error() string {
	return fmt.Sprintf("tenant %q not found", e.Slug)
}

// ModuleNotFoundError is returned when a dashboard module id does not exist.
type ModuleNotFoundError struct {
	ModuleID string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("dashboard module %q not found", e.ModuleID)
}

// SourceNotConfiguredError is returned when neither a stored integration nor
// environment defaults supply credentials for a source. The message carries a
// remediation hint because it surfaces directly to dashboard operators.
type SourceNotConfiguredError struct {
	Source string
	Tenant string
}

func (e *SourceNotConfiguredError) Error() string {
	if e.Tenant == "" {
		return fmt.Sprintf("source %s is not configured: add credentials via the integrations endpoint or set the corresponding environment variables", e.Source)
	}
	return fmt.Sprintf("source %s is not configured for tenant %s: add credentials via the integrations endpoint or set the corresponding environment variables", e.Source, e.Tenant)
}

// UpstreamError wraps a failure talking to a third-party source. Endpoint is
// the logical operation, not the full URL, so messages stay credential-free.
type UpstreamError struct {
	Source   string
	Tenant   string
	Endpoint string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s error for tenant %s (%s): %v", e.Source, e.Tenant, e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// LookupFailedError is returned when a journey lookup cannot complete because
// the authoritative source failed. No record is cached in this state.
type LookupFailedError struct {
	Identity string
	Err      error
}

func (e *LookupFailedError) Error() string {
	return fmt.Sprintf("journey lookup for %s failed: %v", e.Identity, e.Err)
}

func (e *LookupFailedError) Unwrap() error { return e.Err }
