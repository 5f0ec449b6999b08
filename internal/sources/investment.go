// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kpideck/kpideck/internal/models"
)

// investmentClient talks to the investment platform API. Auth is a bearer
// token.
type investmentClient struct {
	core     *httpCore
	cb       *gobreaker.CircuitBreaker[interface{}]
	baseURL  string
	apiToken string
}

// NewInvestmentClient builds an investment platform client for one tenant's
// credentials. Required keys: base_url, api_token.
func NewInvestmentClient(tenant string, tenantID *int64, creds models.Credentials, tracker StatusTracker) (InvestmentClient, error) {
	if !creds.Has("base_url", "api_token") {
		return nil, &models.SourceNotConfiguredError{Source: SourceInvestment, Tenant: tenant}
	}
	return &investmentClient{
		core:     newHTTPCore(SourceInvestment, tenant, tenantID, tracker),
		cb:       newBreaker(SourceInvestment, tenant),
		baseURL:  creds.Get("base_url"),
		apiToken: creds.Get("api_token"),
	}, nil
}

type investmentWire struct {
	ID         string  `json:"id"`
	InvestorID string  `json:"investor_id"`
	OfferingID string  `json:"offering_id"`
	Amount     float64 `json:"amount"`
	InvestedAt string  `json:"invested_at"` // RFC3339
}

type investmentsResponse struct {
	Data []investmentWire `json:"data"`
}

type offeringsResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Status string `json:"status"` // open, closed
	} `json:"data"`
}

func (c *investmentClient) get(ctx context.Context, path, endpoint string, params url.Values, out interface{}) error {
	q := ""
	if params != nil {
		q = "?" + params.Encode()
	}
	return c.core.doJSON(ctx, request{
		method:   http.MethodGet,
		url:      fmt.Sprintf("%s/api/v1%s%s", c.baseURL, path, q),
		headers:  map[string]string{"Authorization": "Bearer " + c.apiToken},
		endpoint: endpoint,
	}, out)
}

func (c *investmentClient) Ping(ctx context.Context) error {
	_, err := executeBreaker(c.cb, func() (*struct{}, error) {
		var resp offeringsResponse
		err := c.get(ctx, "/offerings", "ping", nil, &resp)
		return &struct{}{}, err
	})
	return err
}

// InvestmentStats aggregates investments placed inside the period plus the
// current offering board.
func (c *investmentClient) InvestmentStats(ctx context.Context, r models.DateRange) (*InvestmentStats, error) {
	return executeBreaker(c.cb, func() (*InvestmentStats, error) {
		params := url.Values{}
		params.Set("from", r.From.Format("2006-01-02"))
		params.Set("to", r.To.Format("2006-01-02"))

		var investments investmentsResponse
		if err := c.get(ctx, "/investments", "investments", params, &investments); err != nil {
			return nil, err
		}

		var offerings offeringsResponse
		if err := c.get(ctx, "/offerings", "offerings", nil, &offerings); err != nil {
			return nil, err
		}

		stats := &InvestmentStats{}
		investors := make(map[string]struct{})
		count := 0
		for _, inv := range investments.Data {
			if at, err := time.Parse(time.RFC3339, inv.InvestedAt); err == nil && !r.Contains(at) {
				continue
			}
			stats.TotalInvested += inv.Amount
			investors[inv.InvestorID] = struct{}{}
			count++
		}
		stats.InvestorCount = len(investors)
		if count > 0 {
			stats.AvgTicket = stats.TotalInvested / float64(count)
		}
		for _, off := range offerings.Data {
			if off.Status == "open" {
				stats.ActiveOfferings++
			}
		}
		return stats, nil
	})
}
