// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"time"

	"github.com/kpideck/kpideck/internal/models"
)

// Source names used in integrations, audit rows, and error messages.
const (
	SourceCRM        = "crm"
	SourceAccounting = "accounting"
	SourceChat       = "chat"
	SourceSocial     = "social"
	SourceLearning   = "learning"
	SourceMarketing  = "marketing"
	SourceInvestment = "investment"
)

// AllSources lists every source name in display order.
var AllSources = []string{
	SourceCRM, SourceAccounting, SourceChat, SourceSocial,
	SourceLearning, SourceMarketing, SourceInvestment,
}

// DailyValue is one day of a timeseries aggregate.
type DailyValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// StageCount is one pipeline stage with its open-deal totals.
type StageCount struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// DealSummary aggregates CRM activity over a period.
type DealSummary struct {
	WonValue     float64      `json:"wonValue"`
	WonCount     int          `json:"wonCount"`
	OpenValue    float64      `json:"openValue"`
	OpenCount    int          `json:"openCount"`
	LostCount    int          `json:"lostCount"`
	AvgDealValue float64      `json:"avgDealValue"`
	WonByDay     []DailyValue `json:"wonByDay"`
	Pipeline     []StageCount `json:"pipeline"`
}

// FinanceSummary aggregates accounting activity over a period.
type FinanceSummary struct {
	Revenue            float64      `json:"revenue"`
	Expenses           float64      `json:"expenses"`
	NetIncome          float64      `json:"netIncome"`
	ReceivablesOverdue float64      `json:"receivablesOverdue"`
	RevenueByDay       []DailyValue `json:"revenueByDay"`
}

// CommunityStats is a point-in-time snapshot of the chat community.
type CommunityStats struct {
	TotalMembers   int `json:"totalMembers"`
	OnlineMembers  int `json:"onlineMembers"`
	MessagesWeek   int `json:"messagesWeek"`
	ActiveChannels int `json:"activeChannels"`
}

// SocialStats aggregates social media performance over a period.
type SocialStats struct {
	Followers      int     `json:"followers"`
	Impressions    int     `json:"impressions"`
	Reach          int     `json:"reach"`
	EngagementRate float64 `json:"engagementRate"` // percent
	PostCount      int     `json:"postCount"`
}

// LearningStats aggregates learning platform activity over a period.
type LearningStats struct {
	ActiveStudents   int     `json:"activeStudents"`
	NewEnrollments   int     `json:"newEnrollments"`
	CompletionRate   float64 `json:"completionRate"` // percent
	CoursesPublished int     `json:"coursesPublished"`
}

// MarketingStats aggregates marketing automation activity over a period.
type MarketingStats struct {
	TotalContacts   int     `json:"totalContacts"`
	NewContacts     int     `json:"newContacts"`
	EmailsSent      int     `json:"emailsSent"`
	EmailsOpened    int     `json:"emailsOpened"`
	OpenRate        float64 `json:"openRate"` // percent
	FormSubmissions int     `json:"formSubmissions"`
}

// InvestmentStats aggregates investment platform activity over a period.
type InvestmentStats struct {
	TotalInvested   float64 `json:"totalInvested"`
	InvestorCount   int     `json:"investorCount"`
	ActiveOfferings int     `json:"activeOfferings"`
	AvgTicket       float64 `json:"avgTicket"`
}

// CRMClient reads deal data from the CRM.
type CRMClient interface {
	Ping(ctx context.Context) error
	DealSummary(ctx context.Context, r models.DateRange) (*DealSummary, error)
	// PersonByEmail returns the CRM profile for an email. A missing person is
	// not an error: the profile is nil.
	PersonByEmail(ctx context.Context, email string) (*models.CRMProfile, error)
}

// AccountingClient reads revenue and expense data from the accounting system.
type AccountingClient interface {
	Ping(ctx context.Context) error
	FinanceSummary(ctx context.Context, r models.DateRange) (*FinanceSummary, error)
}

// ChatClient reads community stats from the chat platform.
type ChatClient interface {
	Ping(ctx context.Context) error
	CommunityStats(ctx context.Context) (*CommunityStats, error)
}

// SocialClient reads audience stats from the social platform.
type SocialClient interface {
	Ping(ctx context.Context) error
	SocialStats(ctx context.Context, r models.DateRange) (*SocialStats, error)
}

// LearningClient reads enrollment data from the learning platform.
type LearningClient interface {
	Ping(ctx context.Context) error
	LearningStats(ctx context.Context, r models.DateRange) (*LearningStats, error)
}

// MarketingClient reads contact and campaign data from the marketing
// automation platform. It is the authoritative source for journey lookups.
type MarketingClient interface {
	Ping(ctx context.Context) error
	MarketingStats(ctx context.Context, r models.DateRange) (*MarketingStats, error)
	// ContactByEmail returns the full marketing profile for an email, or
	// models.ErrIdentityNotFound when the platform has no such contact.
	ContactByEmail(ctx context.Context, email string) (*models.MarketingProfile, error)
}

// InvestmentClient reads offering data from the investment platform.
type InvestmentClient interface {
	Ping(ctx context.Context) error
	InvestmentStats(ctx context.Context, r models.DateRange) (*InvestmentStats, error)
}
