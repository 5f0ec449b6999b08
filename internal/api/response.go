// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package api provides HTTP routing and handlers using the Chi router. All
// endpoints speak the models.APIResponse envelope.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/kpideck/kpideck/internal/database"
	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/models"
)

// Error codes carried in APIError.Code.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeTenantNotFound      = "TENANT_NOT_FOUND"
	ErrCodeModuleNotFound      = "MODULE_NOT_FOUND"
	ErrCodeIdentityNotFound    = "IDENTITY_NOT_FOUND"
	ErrCodeSnapshotNotFound    = "SNAPSHOT_NOT_FOUND"
	ErrCodeSourceNotConfigured = "SOURCE_NOT_CONFIGURED"
	ErrCodeUpstreamError       = "UPSTREAM_ERROR"
	ErrCodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// responseWriter writes models.APIResponse envelopes and tracks query time.
type responseWriter struct {
	w         http.ResponseWriter
	startTime time.Time
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w: w, startTime: time.Now()}
}

// Success writes a 200 envelope. cached controls the metadata flag; cached
// responses report zero query time.
func (rw *responseWriter) Success(data interface{}, cached bool) {
	meta := models.Metadata{Timestamp: time.Now().UTC(), Cached: cached}
	if !cached {
		meta.QueryTimeMS = time.Since(rw.startTime).Milliseconds()
	}
	rw.writeJSON(http.StatusOK, models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: meta,
	})
}

// Error writes an error envelope with the given HTTP status.
func (rw *responseWriter) Error(statusCode int, code, message string, details map[string]interface{}) {
	rw.writeJSON(statusCode, models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message, Details: details},
	})
}

// FromError maps the domain error taxonomy onto HTTP statuses and codes.
func (rw *responseWriter) FromError(err error) {
	var (
		tenantNotFound *models.TenantNotFoundError
		moduleNotFound *models.ModuleNotFoundError
		notConfigured  *models.SourceNotConfiguredError
		upstream       *models.UpstreamError
		lookupFailed   *models.LookupFailedError
	)

	switch {
	case errors.As(err, &tenantNotFound):
		rw.Error(http.StatusNotFound, ErrCodeTenantNotFound, err.Error(), nil)
	case errors.As(err, &moduleNotFound):
		rw.Error(http.StatusNotFound, ErrCodeModuleNotFound, err.Error(), nil)
	case errors.As(err, &notConfigured):
		rw.Error(http.StatusConflict, ErrCodeSourceNotConfigured, err.Error(),
			map[string]interface{}{"source": notConfigured.Source, "tenant": notConfigured.Tenant})
	case errors.Is(err, models.ErrIdentityNotFound):
		rw.Error(http.StatusNotFound, ErrCodeIdentityNotFound, err.Error(), nil)
	case errors.Is(err, database.ErrSnapshotNotFound):
		rw.Error(http.StatusNotFound, ErrCodeSnapshotNotFound, err.Error(), nil)
	case errors.As(err, &upstream), errors.As(err, &lookupFailed):
		rw.Error(http.StatusBadGateway, ErrCodeUpstreamError, err.Error(), nil)
	case errors.Is(err, models.ErrStorageUnavailable):
		rw.Error(http.StatusServiceUnavailable, ErrCodeStorageUnavailable,
			"storage is temporarily unavailable", nil)
	default:
		logging.Error().Err(err).Msg("Unhandled API error")
		rw.Error(http.StatusInternalServerError, ErrCodeInternal, "internal error", nil)
	}
}

// BadRequest writes a 400 validation error.
func (rw *responseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeValidation, message, nil)
}

func (rw *responseWriter) writeJSON(statusCode int, data interface{}) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
