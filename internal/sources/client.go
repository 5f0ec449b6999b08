// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
)

// StatusTracker records the outcome of every upstream call in the
// append-only audit trail. Implemented by database.DB.
type StatusTracker interface {
	InsertAPICallRecord(ctx context.Context, rec *models.APICallRecord) error
}

// httpCore is the shared transport used by every concrete client. It owns
// the timeout, client-side rate limiting, 429 backoff, metrics, and audit
// recording so individual clients only describe their wire formats.
type httpCore struct {
	source         string
	tenant         string
	tenantID       *int64
	client         *http.Client
	limiter        *rate.Limiter
	tracker        StatusTracker
	maxRetries     int
	retryBaseDelay time.Duration
}

func newHTTPCore(source, tenant string, tenantID *int64, tracker StatusTracker) *httpCore {
	return &httpCore{
		source:   source,
		tenant:   tenant,
		tenantID: tenantID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Upstream APIs tolerate modest call rates; 5 req/s with small bursts
		// keeps nightly snapshot fans-out polite.
		limiter:        rate.NewLimiter(rate.Limit(5), 10),
		tracker:        tracker,
		maxRetries:     3,
		retryBaseDelay: time.Second,
	}
}

// request describes one upstream call.
type request struct {
	method   string
	url      string
	body     io.Reader
	headers  map[string]string
	endpoint string // logical operation name for audit rows and metrics
}

// doJSON performs the request and decodes the JSON response into out. It
// waits on the rate limiter, retries on HTTP 429 with exponential backoff,
// records metrics and an audit row, and wraps failures in UpstreamError.
func (c *httpCore) doJSON(ctx context.Context, req request, out interface{}) error {
	start := time.Now()
	err := c.do(ctx, req, out)
	elapsed := time.Since(start)

	metrics.RecordSourceCall(c.source, req.endpoint, elapsed, err)
	c.recordStatus(req.endpoint, elapsed, err)

	if err != nil {
		return &models.UpstreamError{
			Source:   c.source,
			Tenant:   c.tenant,
			Endpoint: req.endpoint,
			Err:      err,
		}
	}
	return nil
}

func (c *httpCore) do(ctx context.Context, req request, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, req.body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")
		for k, v := range req.headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt == c.maxRetries {
				lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
				break
			}
			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
					delay = d
				}
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		return decodeResponse(resp, out)
	}

	return lastErr
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errStatusNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode,
			logging.SanitizeUpstreamError(strings.TrimSpace(string(body))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errStatusNotFound flows internally so clients can map HTTP 404 to domain
// semantics (absent person vs. hard failure).
var errStatusNotFound = fmt.Errorf("resource not found (HTTP 404)")

// recordStatus appends one audit row. Audit persistence is best-effort: a
// storage failure here must never fail the upstream call itself.
func (c *httpCore) recordStatus(endpoint string, elapsed time.Duration, callErr error) {
	if c.tracker == nil {
		return
	}

	status := models.SourceOnline
	errMsg := ""
	if callErr != nil {
		status = models.SourceOffline
		errMsg = logging.SanitizeUpstreamError(callErr.Error())
	}
	ms := elapsed.Milliseconds()

	rec := &models.APICallRecord{
		SourceName:     c.source,
		TenantID:       c.tenantID,
		Status:         status,
		Endpoint:       endpoint,
		ErrorMessage:   errMsg,
		ResponseTimeMs: &ms,
		CheckedAt:      time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.tracker.InsertAPICallRecord(ctx, rec); err != nil {
		logging.Warn().Err(err).Str("source", c.source).Msg("Failed to record API status")
	}
}
