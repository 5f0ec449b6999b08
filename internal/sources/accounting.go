// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kpideck/kpideck/internal/models"
)

// accountingClient talks to a Conta Azul-compatible accounting API.
// Auth is HTTP basic with client_id/client_secret.
type accountingClient struct {
	core    *httpCore
	cb      *gobreaker.CircuitBreaker[interface{}]
	baseURL string
	auth    string
}

// NewAccountingClient builds an accounting client for one tenant's
// credentials. Required keys: base_url, client_id, client_secret.
func NewAccountingClient(tenant string, tenantID *int64, creds models.Credentials, tracker StatusTracker) (AccountingClient, error) {
	if !creds.Has("base_url", "client_id", "client_secret") {
		return nil, &models.SourceNotConfiguredError{Source: SourceAccounting, Tenant: tenant}
	}
	token := base64.StdEncoding.EncodeToString(
		[]byte(creds.Get("client_id") + ":" + creds.Get("client_secret")))
	return &accountingClient{
		core:    newHTTPCore(SourceAccounting, tenant, tenantID, tracker),
		cb:      newBreaker(SourceAccounting, tenant),
		baseURL: creds.Get("base_url"),
		auth:    "Basic " + token,
	}, nil
}

type accountingEntryWire struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Type        string  `json:"type"` // REVENUE, EXPENSE
	Status      string  `json:"status"`
	DueDate     string  `json:"due_date"`     // "2006-01-02"
	PaymentDate *string `json:"payment_date"` // nil when unpaid
}

type accountingEntriesResponse struct {
	Items []accountingEntryWire `json:"items"`
}

func (c *accountingClient) get(ctx context.Context, path, endpoint string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	return c.core.doJSON(ctx, request{
		method:   http.MethodGet,
		url:      fmt.Sprintf("%s/v1%s?%s", c.baseURL, path, params.Encode()),
		headers:  map[string]string{"Authorization": c.auth},
		endpoint: endpoint,
	}, out)
}

func (c *accountingClient) Ping(ctx context.Context) error {
	_, err := executeBreaker(c.cb, func() (*struct{}, error) {
		params := url.Values{}
		params.Set("size", "1")
		var resp accountingEntriesResponse
		err := c.get(ctx, "/financial-entries", "ping", params, &resp)
		return &struct{}{}, err
	})
	return err
}

// FinanceSummary aggregates paid entries over the period. Revenue and
// expenses are bucketed by payment date; overdue receivables are unpaid
// revenue entries whose due date has passed.
func (c *accountingClient) FinanceSummary(ctx context.Context, r models.DateRange) (*FinanceSummary, error) {
	return executeBreaker(c.cb, func() (*FinanceSummary, error) {
		params := url.Values{}
		params.Set("start_date", r.From.Format("2006-01-02"))
		params.Set("end_date", r.To.Format("2006-01-02"))
		params.Set("size", "1000")

		var resp accountingEntriesResponse
		if err := c.get(ctx, "/financial-entries", "financial_entries", params, &resp); err != nil {
			return nil, err
		}

		summary := &FinanceSummary{}
		byDay := make(map[time.Time]float64)
		now := time.Now()

		for _, e := range resp.Items {
			paid := e.PaymentDate != nil
			switch e.Type {
			case "REVENUE":
				if paid {
					if at := parseAccountingDate(*e.PaymentDate); at != nil && r.Contains(*at) {
						summary.Revenue += e.Value
						byDay[models.TruncateToDay(*at)] += e.Value
					}
				} else if due := parseAccountingDate(e.DueDate); due != nil && due.Before(now) {
					summary.ReceivablesOverdue += e.Value
				}
			case "EXPENSE":
				if paid {
					if at := parseAccountingDate(*e.PaymentDate); at != nil && r.Contains(*at) {
						summary.Expenses += e.Value
					}
				}
			}
		}
		summary.NetIncome = summary.Revenue - summary.Expenses

		for day, value := range byDay {
			summary.RevenueByDay = append(summary.RevenueByDay, DailyValue{Date: day, Value: value})
		}
		sort.Slice(summary.RevenueByDay, func(i, j int) bool {
			return summary.RevenueByDay[i].Date.Before(summary.RevenueByDay[j].Date)
		})

		return summary, nil
	})
}

func parseAccountingDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
