// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package models

import "time"

// Tenant is an independent business unit. Credentials and dashboards are
// isolated per tenant.
type Tenant struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Credentials is a flat key/value credential bag for one source, e.g.
// {"api_token": "...", "base_url": "..."} for the CRM or
// {"bot_token": "...", "guild_id": "..."} for the chat platform.
type Credentials map[string]string

// Get returns the value for key, or "" when absent.
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return c[key]
}

// Has reports whether every listed key is present and non-empty.
func (c Credentials) Has(keys ...string) bool {
	for _, k := range keys {
		if c.Get(k) == "" {
			return false
		}
	}
	return true
}

// Integration is a tenant-scoped stored credential set for one source.
// Credentials are encrypted at rest; the store decrypts on read.
type Integration struct {
	TenantID    int64       `json:"tenantId"`
	SourceName  string      `json:"sourceName"`
	Credentials Credentials `json:"credentials"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
