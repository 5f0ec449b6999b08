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

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kpideck/kpideck/internal/models"
)

// socialClient talks to an Instagram Graph-compatible API. Auth is an
// access_token query parameter on a business account ID.
type socialClient struct {
	core      *httpCore
	cb        *gobreaker.CircuitBreaker[interface{}]
	baseURL   string
	apiToken  string
	accountID string
}

// NewSocialClient builds a social client for one tenant's credentials.
// Required keys: api_token, account_id. Optional: base_url.
func NewSocialClient(tenant string, tenantID *int64, creds models.Credentials, tracker StatusTracker) (SocialClient, error) {
	if !creds.Has("api_token", "account_id") {
		return nil, &models.SourceNotConfiguredError{Source: SourceSocial, Tenant: tenant}
	}
	baseURL := creds.Get("base_url")
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v19.0"
	}
	return &socialClient{
		core:      newHTTPCore(SourceSocial, tenant, tenantID, tracker),
		cb:        newBreaker(SourceSocial, tenant),
		baseURL:   baseURL,
		apiToken:  creds.Get("api_token"),
		accountID: creds.Get("account_id"),
	}, nil
}

type socialAccountWire struct {
	ID             string `json:"id"`
	FollowersCount int    `json:"followers_count"`
	MediaCount     int    `json:"media_count"`
}

type socialInsightsWire struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

func (c *socialClient) get(ctx context.Context, path, endpoint string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.apiToken)
	return c.core.doJSON(ctx, request{
		method:   http.MethodGet,
		url:      fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode()),
		endpoint: endpoint,
	}, out)
}

func (c *socialClient) Ping(ctx context.Context) error {
	_, err := executeBreaker(c.cb, func() (*struct{}, error) {
		params := url.Values{}
		params.Set("fields", "id")
		var acc socialAccountWire
		err := c.get(ctx, "/"+c.accountID, "ping", params, &acc)
		return &struct{}{}, err
	})
	return err
}

// SocialStats combines the account snapshot (followers, media) with period
// insights (impressions, reach, engagement).
func (c *socialClient) SocialStats(ctx context.Context, r models.DateRange) (*SocialStats, error) {
	return executeBreaker(c.cb, func() (*SocialStats, error) {
		accParams := url.Values{}
		accParams.Set("fields", "followers_count,media_count")
		var acc socialAccountWire
		if err := c.get(ctx, "/"+c.accountID, "account", accParams, &acc); err != nil {
			return nil, err
		}

		insParams := url.Values{}
		insParams.Set("metric", "impressions,reach,total_interactions")
		insParams.Set("period", "day")
		insParams.Set("since", fmt.Sprintf("%d", r.From.Unix()))
		insParams.Set("until", fmt.Sprintf("%d", r.To.AddDate(0, 0, 1).Unix()))
		var ins socialInsightsWire
		if err := c.get(ctx, "/"+c.accountID+"/insights", "insights", insParams, &ins); err != nil {
			return nil, err
		}

		stats := &SocialStats{
			Followers: acc.FollowersCount,
			PostCount: acc.MediaCount,
		}
		var interactions int
		for _, metric := range ins.Data {
			total := 0
			for _, v := range metric.Values {
				total += v.Value
			}
			switch metric.Name {
			case "impressions":
				stats.Impressions = total
			case "reach":
				stats.Reach = total
			case "total_interactions":
				interactions = total
			}
		}
		if stats.Reach > 0 {
			stats.EngagementRate = float64(interactions) / float64(stats.Reach) * 100
		}
		return stats, nil
	})
}
