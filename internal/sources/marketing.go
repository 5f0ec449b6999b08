// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kpideck/kpideck/internal/models"
)

// marketingClient talks to a Mautic-compatible marketing automation API.
// Auth is HTTP basic with username/password.
type marketingClient struct {
	core    *httpCore
	cb      *gobreaker.CircuitBreaker[interface{}]
	baseURL string
	auth    string
}

// NewMarketingClient builds a marketing automation client for one tenant's
// credentials. Required keys: base_url, username, password.
func NewMarketingClient(tenant string, tenantID *int64, creds models.Credentials, tracker StatusTracker) (MarketingClient, error) {
	if !creds.Has("base_url", "username", "password") {
		return nil, &models.SourceNotConfiguredError{Source: SourceMarketing, Tenant: tenant}
	}
	token := base64.StdEncoding.EncodeToString(
		[]byte(creds.Get("username") + ":" + creds.Get("password")))
	return &marketingClient{
		core:    newHTTPCore(SourceMarketing, tenant, tenantID, tracker),
		cb:      newBreaker(SourceMarketing, tenant),
		baseURL: creds.Get("base_url"),
		auth:    "Basic " + token,
	}, nil
}

// Wire formats (Mautic REST shapes, trimmed to the fields read here).
// Contacts come keyed by ID in an object, not an array.

type marketingContactWire struct {
	ID         int64   `json:"id"`
	Points     int     `json:"points"`
	DateAdded  string  `json:"dateAdded"`
	LastActive *string `json:"lastActive"`
	Fields     struct {
		Core map[string]struct {
			Value string `json:"value"`
		} `json:"core"`
	} `json:"fields"`
}

type marketingContactsResponse struct {
	Total    json.Number                     `json:"total"`
	Contacts map[string]marketingContactWire `json:"contacts"`
}

type marketingEventsResponse struct {
	Events []struct {
		Event      string          `json:"event"`
		EventLabel json.RawMessage `json:"eventLabel"`
		Timestamp  string          `json:"timestamp"`
	} `json:"events"`
	Total int `json:"total"`
}

type marketingCampaignsResponse struct {
	Campaigns map[string]struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"campaigns"`
}

type marketingSegmentsResponse struct {
	Lists map[string]struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Alias string `json:"alias"`
	} `json:"lists"`
}

type marketingEmailsResponse struct {
	Emails map[string]struct {
		ID        int64 `json:"id"`
		SentCount int   `json:"sentCount"`
		ReadCount int   `json:"readCount"`
	} `json:"emails"`
}

type marketingFormsResponse struct {
	Forms map[string]struct {
		ID              int64 `json:"id"`
		SubmissionCount int   `json:"submissionCount"`
	} `json:"forms"`
}

const marketingTimeLayout = "2006-01-02T15:04:05-07:00"

func (c *marketingClient) get(ctx context.Context, path, endpoint string, params url.Values, out interface{}) error {
	q := ""
	if params != nil {
		q = "?" + params.Encode()
	}
	return c.core.doJSON(ctx, request{
		method:   http.MethodGet,
		url:      fmt.Sprintf("%s/api%s%s", c.baseURL, path, q),
		headers:  map[string]string{"Authorization": c.auth},
		endpoint: endpoint,
	}, out)
}

func (c *marketingClient) Ping(ctx context.Context) error {
	_, err := executeBreaker(c.cb, func() (*struct{}, error) {
		params := url.Values{}
		params.Set("limit", "1")
		var resp marketingContactsResponse
		err := c.get(ctx, "/contacts", "ping", params, &resp)
		return &struct{}{}, err
	})
	return err
}

// MarketingStats aggregates the contact base, email performance, and form
// submissions. New contacts filter on dateAdded within the period.
func (c *marketingClient) MarketingStats(ctx context.Context, r models.DateRange) (*MarketingStats, error) {
	return executeBreaker(c.cb, func() (*MarketingStats, error) {
		stats := &MarketingStats{}

		params := url.Values{}
		params.Set("limit", "1000")
		var contacts marketingContactsResponse
		if err := c.get(ctx, "/contacts", "contacts", params, &contacts); err != nil {
			return nil, err
		}
		if total, err := contacts.Total.Int64(); err == nil {
			stats.TotalContacts = int(total)
		} else {
			stats.TotalContacts = len(contacts.Contacts)
		}
		for _, contact := range contacts.Contacts {
			if added := parseMarketingTime(contact.DateAdded); added != nil && r.Contains(*added) {
				stats.NewContacts++
			}
		}

		var emails marketingEmailsResponse
		if err := c.get(ctx, "/emails", "emails", nil, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails.Emails {
			stats.EmailsSent += e.SentCount
			stats.EmailsOpened += e.ReadCount
		}
		if stats.EmailsSent > 0 {
			stats.OpenRate = float64(stats.EmailsOpened) / float64(stats.EmailsSent) * 100
		}

		var forms marketingFormsResponse
		if err := c.get(ctx, "/forms", "forms", nil, &forms); err != nil {
			return nil, err
		}
		for _, f := range forms.Forms {
			stats.FormSubmissions += f.SubmissionCount
		}

		return stats, nil
	})
}

// ContactByEmail loads the full marketing profile for an identity: contact
// record, activity history, campaigns, and segments. An unknown email yields
// models.ErrIdentityNotFound; only transport and auth failures are errors.
func (c *marketingClient) ContactByEmail(ctx context.Context, email string) (*models.MarketingProfile, error) {
	return executeBreaker(c.cb, func() (*models.MarketingProfile, error) {
		params := url.Values{}
		params.Set("search", "email:"+email)
		params.Set("limit", "1")

		var contacts marketingContactsResponse
		if err := c.get(ctx, "/contacts", "contact_search", params, &contacts); err != nil {
			return nil, err
		}
		if len(contacts.Contacts) == 0 {
			return nil, models.ErrIdentityNotFound
		}

		var wire marketingContactWire
		for _, v := range contacts.Contacts {
			wire = v
			break
		}

		contact := models.MarketingContact{
			ID:     wire.ID,
			Email:  email,
			Points: wire.Points,
		}
		if f, ok := wire.Fields.Core["firstname"]; ok {
			contact.FirstName = f.Value
		}
		if f, ok := wire.Fields.Core["lastname"]; ok {
			contact.LastName = f.Value
		}
		if added := parseMarketingTime(wire.DateAdded); added != nil {
			contact.DateAdded = *added
		}
		if wire.LastActive != nil {
			contact.LastActive = parseMarketingTime(*wire.LastActive)
		}

		profile := &models.MarketingProfile{Contact: contact}
		id := strconv.FormatInt(wire.ID, 10)

		var events marketingEventsResponse
		if err := c.get(ctx, "/contacts/"+id+"/activity", "contact_activity", nil, &events); err != nil {
			return nil, err
		}
		for _, ev := range events.Events {
			event := models.ActivityEvent{Event: ev.Event}
			if ts := parseMarketingTime(ev.Timestamp); ts != nil {
				event.Timestamp = *ts
			}
			var label string
			if err := json.Unmarshal(ev.EventLabel, &label); err == nil {
				event.Label = label
			}
			profile.Activities = append(profile.Activities, event)
		}

		var campaigns marketingCampaignsResponse
		if err := c.get(ctx, "/contacts/"+id+"/campaigns", "contact_campaigns", nil, &campaigns); err != nil {
			return nil, err
		}
		for _, camp := range campaigns.Campaigns {
			profile.Campaigns = append(profile.Campaigns, models.Campaign{ID: camp.ID, Name: camp.Name})
		}

		var segments marketingSegmentsResponse
		if err := c.get(ctx, "/contacts/"+id+"/segments", "contact_segments", nil, &segments); err != nil {
			return nil, err
		}
		for _, seg := range segments.Lists {
			profile.Segments = append(profile.Segments, models.Segment{ID: seg.ID, Name: seg.Name, Alias: seg.Alias})
		}

		return profile, nil
	})
}

func parseMarketingTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{marketingTimeLayout, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// IsIdentityNotFound reports whether err means the marketing platform has no
// contact for the identity, unwrapping breaker and upstream layers.
func IsIdentityNotFound(err error) bool {
	return errors.Is(err, models.ErrIdentityNotFound)
}
