// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ConversionStatus is the resolved sales status of a journey identity.
type ConversionStatus string

const (
	StatusLead        ConversionStatus = "lead"
	StatusNegotiating ConversionStatus = "negotiating"
	StatusWon         ConversionStatus = "won"
	StatusLost        ConversionStatus = "lost"
)

// MarketingContact is the contact record from the marketing automation
// platform, which is authoritative for identity existence.
type MarketingContact struct {
	ID         int64           `json:"id"`
	Email      string          `json:"email"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Points     int             `json:"points"`
	DateAdded  time.Time       `json:"dateAdded"`
	LastActive *time.Time      `json:"lastActive,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// ActivityEvent is one tracked touchpoint on a marketing contact.
type ActivityEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label,omitempty"`
}

// Campaign is a marketing campaign membership.
type Campaign struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Segment is a marketing segment membership.
type Segment struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// MarketingProfile bundles everything the marketing platform knows about one identity.
type MarketingProfile struct {
	Contact    MarketingContact `json:"contact"`
	Activities []ActivityEvent  `json:"activities"`
	Campaigns  []Campaign       `json:"campaigns"`
	Segments   []Segment        `json:"segments"`
}

// CRMPerson is the person record from the CRM.
type CRMPerson struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Raw   json.RawMessage `json:"-"`
}

// DealStatus is the CRM deal lifecycle state.
type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

// Deal is a CRM deal record.
type Deal struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	Value    float64    `json:"value"`
	Currency string     `json:"currency,omitempty"`
	Status   DealStatus `json:"status"`
	AddTime  time.Time  `json:"addTime"`
	WonTime  *time.Time `json:"wonTime,omitempty"`
}

// CRMProfile bundles everything the CRM knows about one identity. WonDeal
// points at the first won deal, when one exists.
type CRMProfile struct {
	Person  CRMPerson `json:"person"`
	Deals   []Deal    `json:"deals"`
	WonDeal *Deal     `json:"wonDeal,omitempty"`
}

// JourneyMetrics are derived from the merged profiles at lookup time.
type JourneyMetrics struct {
	DaysInBase       int              `json:"daysInBase"`
	DaysToConversion *int             `json:"daysToConversion"`
	ConversionStatus ConversionStatus `json:"conversionStatus"`
	DealValue        *float64         `json:"dealValue"`
	TotalActivities  int              `json:"totalActivities"`
	EmailsSent       int              `json:"emailsSent"`
	EmailsOpened     int              `json:"emailsOpened"`
	PagesVisited     int              `json:"pagesVisited"`
	FormsSubmitted   int              `json:"formsSubmitted"`
	Downloads        int              `json:"downloads"`
	VideosWatched    int              `json:"videosWatched"`
	PointsGained     int              `json:"pointsGained"`
}

// JourneyRecord is the cached merge of both source profiles for one
// identity. Exactly one live record exists per identity (upsert semantics).
// A record with time.Now() past ExpiresAt is logically absent regardless of
// physical storage. CRM is nil when the CRM had nothing or was down at
// fetch time; Marketing is never nil on a stored record.
type JourneyRecord struct {
	Identity  string            `json:"identity"`
	Marketing *MarketingProfile `json:"marketing"`
	CRM       *CRMProfile       `json:"crm"`
	Metrics   JourneyMetrics    `json:"metrics"`
	Narrative *string           `json:"narrative"`
	CachedAt  time.Time         `json:"cachedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Fresh reports whether the record is still live at the given instant.
func (r *JourneyRecord) Fresh(now time.Time) bool {
	return !now.After(r.ExpiresAt)
}

// DisplayName returns the best human-readable name for the identity.
func (r *JourneyRecord) DisplayName() string {
	if r.Marketing == nil {
		return r.Identity
	}
	c := r.Marketing.Contact
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.Email != "":
		return c.Email
	default:
		return r.Identity
	}
}

// SearchHistoryEntry is one row of the append-only journey lookup audit
// trail. One entry is written per lookup request, cached or not.
type SearchHistoryEntry struct {
	ID          string           `json:"id"`
	Identity    string           `json:"identity"`
	DisplayName string           `json:"displayName"`
	Status      ConversionStatus `json:"status"`
	DealValue   *float64         `json:"dealValue,omitempty"`
	SearchedAt  time.Time        `json:"searchedAt"`
	SearchedBy  string           `json:"searchedBy"`
}
