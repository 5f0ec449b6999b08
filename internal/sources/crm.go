// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kpideck/kpideck/internal/models"
)

// crmClient talks to a Pipedrive-compatible CRM API. Auth is an api_token
// query parameter; endpoints are /api/v1/deals and /api/v1/persons/search.
type crmClient struct {
	core     *httpCore
	cb       *gobreaker.CircuitBreaker[interface{}]
	baseURL  string
	apiToken string
}

// NewCRMClient builds a CRM client for one tenant's credentials. Required
// keys: base_url, api_token.
func NewCRMClient(tenant string, tenantID *int64, creds models.Credentials, tracker StatusTracker) (CRMClient, error) {
	if !creds.Has("base_url", "api_token") {
		return nil, &models.SourceNotConfiguredError{Source: SourceCRM, Tenant: tenant}
	}
	return &crmClient{
		core:     newHTTPCore(SourceCRM, tenant, tenantID, tracker),
		cb:       newBreaker(SourceCRM, tenant),
		baseURL:  creds.Get("base_url"),
		apiToken: creds.Get("api_token"),
	}, nil
}

// Wire formats (Pipedrive API v1 shapes, trimmed to the fields read here).

type crmDealWire struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Value     float64 `json:"value"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"` // open, won, lost
	StageName string  `json:"stage_name"`
	AddTime   string  `json:"add_time"` // "2006-01-02 15:04:05"
	WonTime   *string `json:"won_time"`
}

type crmDealsResponse struct {
	Success bool          `json:"success"`
	Data    []crmDealWire `json:"data"`
}

type crmPersonWire struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type crmPersonSearchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			Item crmPersonWire `json:"item"`
		} `json:"items"`
	} `json:"data"`
}

const crmTimeLayout = "2006-01-02 15:04:05"

func (c *crmClient) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiToken)
	return fmt.Sprintf("%s/api/v1%s?%s", c.baseURL, path, params.Encode())
}

func (c *crmClient) Ping(ctx context.Context) error {
	_, err := executeBreaker(c.cb, func() (*struct{}, error) {
		params := url.Values{}
		params.Set("limit", "1")
		var resp crmDealsResponse
		err := c.core.doJSON(ctx, request{
			method:   http.MethodGet,
			url:      c.endpoint("/deals", params),
			endpoint: "ping",
		}, &resp)
		return &struct{}{}, err
	})
	return err
}

// DealSummary fetches deals and aggregates them over the period. Won totals
// use won_time; open and lost counts use add_time, matching how the CRM's
// own period filters behave.
func (c *crmClient) DealSummary(ctx context.Context, r models.DateRange) (*DealSummary, error) {
	return executeBreaker(c.cb, func() (*DealSummary, error) {
		params := url.Values{}
		params.Set("status", "all_not_deleted")
		params.Set("limit", "500")

		var resp crmDealsResponse
		if err := c.core.doJSON(ctx, request{
			method:   http.MethodGet,
			url:      c.endpoint("/deals", params),
			endpoint: "deals",
		}, &resp); err != nil {
			return nil, err
		}

		summary := &DealSummary{}
		wonByDay := make(map[time.Time]float64)
		stages := make(map[string]*StageCount)

		for _, d := range resp.Data {
			switch d.Status {
			case "won":
				wonAt := parseCRMTime(d.WonTime)
				if wonAt == nil || !r.Contains(*wonAt) {
					continue
				}
				summary.WonValue += d.Value
				summary.WonCount++
				day := models.TruncateToDay(*wonAt)
				wonByDay[day] += d.Value
			case "open":
				summary.OpenValue += d.Value
				summary.OpenCount++
				stage := d.StageName
				if stage == "" {
					stage = "unstaged"
				}
				if _, ok := stages[stage]; !ok {
					stages[stage] = &StageCount{Stage: stage}
				}
				stages[stage].Count++
				stages[stage].Value += d.Value
			case "lost":
				addAt := parseCRMTimeStr(d.AddTime)
				if addAt != nil && r.Contains(*addAt) {
					summary.LostCount++
				}
			}
		}

		if summary.WonCount > 0 {
			summary.AvgDealValue = summary.WonValue / float64(summary.WonCount)
		}

		for day, value := range wonByDay {
			summary.WonByDay = append(summary.WonByDay, DailyValue{Date: day, Value: value})
		}
		sort.Slice(summary.WonByDay, func(i, j int) bool {
			return summary.WonByDay[i].Date.Before(summary.WonByDay[j].Date)
		})
		for _, s := range stages {
			summary.Pipeline = append(summary.Pipeline, *s)
		}
		sort.Slice(summary.Pipeline, func(i, j int) bool {
			return summary.Pipeline[i].Stage < summary.Pipeline[j].Stage
		})

		return summary, nil
	})
}

// PersonByEmail searches for a person and loads their deals. A person with
// no match yields (nil, nil) so callers can distinguish absence from failure.
func (c *crmClient) PersonByEmail(ctx context.Context, email string) (*models.CRMProfile, error) {
	type result struct{ profile *models.CRMProfile }

	res, err := executeBreaker(c.cb, func() (*result, error) {
		params := url.Values{}
		params.Set("term", email)
		params.Set("fields", "email")
		params.Set("exact_match", "true")

		var search crmPersonSearchResponse
		err := c.core.doJSON(ctx, request{
			method:   http.MethodGet,
			url:      c.endpoint("/persons/search", params),
			endpoint: "persons_search",
		}, &search)
		if err != nil {
			if errors.Is(err, errStatusNotFound) {
				return &result{}, nil
			}
			return nil, err
		}
		if len(search.Data.Items) == 0 {
			return &result{}, nil
		}

		person := search.Data.Items[0].Item

		dealParams := url.Values{}
		dealParams.Set("status", "all_not_deleted")
		var deals crmDealsResponse
		if err := c.core.doJSON(ctx, request{
			method:   http.MethodGet,
			url:      c.endpoint(fmt.Sprintf("/persons/%d/deals", person.ID), dealParams),
			endpoint: "person_deals",
		}, &deals); err != nil {
			return nil, err
		}

		profile := &models.CRMProfile{
			Person: models.CRMPerson{
				ID:    person.ID,
				Name:  person.Name,
				Email: email,
			},
		}
		for _, d := range deals.Data {
			deal := models.Deal{
				ID:       d.ID,
				Title:    d.Title,
				Value:    d.Value,
				Currency: d.Currency,
				Status:   models.DealStatus(d.Status),
			}
			if at := parseCRMTimeStr(d.AddTime); at != nil {
				deal.AddTime = *at
			}
			deal.WonTime = parseCRMTime(d.WonTime)
			profile.Deals = append(profile.Deals, deal)
			if deal.Status == models.DealWon && profile.WonDeal == nil {
				won := deal
				profile.WonDeal = &won
			}
		}
		return &result{profile: profile}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.profile, nil
}

func parseCRMTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return parseCRMTimeStr(*s)
}

func parseCRMTimeStr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(crmTimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
