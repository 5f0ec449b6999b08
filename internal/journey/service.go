// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

// Package journey resolves the full lifecycle of one identity (an email)
// across the marketing automation platform and the CRM, caches the merged
// record for 24 hours, and keeps the search history.
//
// The marketing platform is authoritative: if it has no contact, the lookup
// reports identity-not-found and nothing is cached. The CRM enriches
// best-effort: its outage degrades the record to marketing-only rather than
// failing the lookup.
package journey

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kpideck/kpideck/internal/database"
	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/metrics"
	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/sources"
)

// Store is the persistence surface the service needs. database.DB satisfies
// it; tests substitute an in-memory fake.
type Store interface {
	GetJourney(ctx context.Context, identity string) (*models.JourneyRecord, error)
	UpsertJourney(ctx context.Context, record *models.JourneyRecord) error
	InsertSearchHistory(ctx context.Context, entry *models.SearchHistoryEntry) error
	ListSearchHistory(ctx context.Context, limit int) ([]models.SearchHistoryEntry, error)
}

// Service merges the two source profiles into cached journey records.
type Service struct {
	store        Store
	marketing    sources.MarketingClient
	crm          sources.CRMClient
	ttl          time.Duration
	fetchTimeout time.Duration

	// Narrative enrichment runs in the background after a fresh lookup.
	enrichWG sync.WaitGroup
}

// New builds the journey service. ttl controls how long merged records stay
// fresh; fetchTimeout bounds each upstream fetch.
func New(store Store, marketing sources.MarketingClient, crm sources.CRMClient, ttl, fetchTimeout time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Service{
		store:        store,
		marketing:    marketing,
		crm:          crm,
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
	}
}

// Result is a lookup outcome: the record plus whether it was served from
// cache.
type Result struct {
	Record *models.JourneyRecord `json:"record"`
	Cached bool                  `json:"cached"`
}

// Lookup resolves the journey for an identity. A fresh cached record is
// returned as-is; otherwise both sources are fetched concurrently, merged,
// and cached. force bypasses the cache entirely.
//
// Every successful lookup (cached or fresh) appends a search history entry.
// A storage outage on the write path degrades to an uncached but correct
// response; it never fails the lookup.
func (s *Service) Lookup(ctx context.Context, identity string, force bool, searchedBy string) (*Result, error) {
	start := time.Now()
	identity = strings.ToLower(strings.TrimSpace(identity))

	if !force {
		cached, err := s.store.GetJourney(ctx, identity)
		switch {
		case err == nil && cached.Fresh(time.Now()):
			metrics.JourneyLookups.WithLabelValues("cached").Inc()
			metrics.JourneyLookupDuration.Observe(time.Since(start).Seconds())
			s.appendHistory(ctx, cached, searchedBy)
			return &Result{Record: cached, Cached: true}, nil
		case err != nil && !errors.Is(err, database.ErrJourneyNotCached):
			logging.Warn().Err(err).Str("identity", logging.MaskEmail(identity)).
				Msg("Journey cache read failed, fetching fresh")
		}
	}

	record, err := s.fetchAndMerge(ctx, identity)
	if err != nil {
		if errors.Is(err, models.ErrIdentityNotFound) {
			metrics.JourneyLookups.WithLabelValues("not_found").Inc()
			return nil, err
		}
		metrics.JourneyLookups.WithLabelValues("failed").Inc()
		return nil, &models.LookupFailedError{Identity: identity, Err: err}
	}

	if err := s.store.UpsertJourney(ctx, record); err != nil {
		logging.Warn().Err(err).Str("identity", logging.MaskEmail(identity)).
			Msg("Journey cache write failed, serving uncached record")
	} else {
		s.enrichAsync(identity)
	}

	metrics.JourneyLookups.WithLabelValues("fresh").Inc()
	metrics.JourneyLookupDuration.Observe(time.Since(start).Seconds())
	s.appendHistory(ctx, record, searchedBy)
	return &Result{Record: record, Cached: false}, nil
}

// History returns the most recent search history entries.
func (s *Service) History(ctx context.Context, limit int) ([]models.SearchHistoryEntry, error) {
	return s.store.ListSearchHistory(ctx, limit)
}

// fetchAndMerge fetches both sources concurrently and merges the profiles.
// The marketing fetch decides the outcome; the CRM fetch is best-effort.
func (s *Service) fetchAndMerge(ctx context.Context, identity string) (*models.JourneyRecord, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var (
		wg            sync.WaitGroup
		marketingProf *models.MarketingProfile
		marketingErr  error
		crmProf       *models.CRMProfile
		crmErr        error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		marketingProf, marketingErr = s.marketing.ContactByEmail(fetchCtx, identity)
	}()
	go func() {
		defer wg.Done()
		if s.crm == nil {
			return
		}
		crmProf, crmErr = s.crm.PersonByEmail(fetchCtx, identity)
	}()
	wg.Wait()

	if marketingErr != nil {
		return nil, marketingErr
	}

	if crmErr != nil {
		logging.Warn().Err(crmErr).Str("identity", logging.MaskEmail(identity)).
			Msg("CRM fetch failed, journey degrades to marketing-only")
		crmProf = nil
	}

	now := time.Now().UTC()
	record := &models.JourneyRecord{
		Identity:  identity,
		Marketing: marketingProf,
		CRM:       crmProf,
		Metrics:   computeMetrics(marketingProf, crmProf, now),
		CachedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	return record, nil
}

// appendHistory writes one search history row. Best-effort: failures are
// logged and swallowed.
func (s *Service) appendHistory(ctx context.Context, record *models.JourneyRecord, searchedBy string) {
	entry := &models.SearchHistoryEntry{
		ID:          uuid.NewString(),
		Identity:    record.Identity,
		DisplayName: record.DisplayName(),
		Status:      record.Metrics.ConversionStatus,
		DealValue:   record.Metrics.DealValue,
		SearchedAt:  time.Now().UTC(),
		SearchedBy:  searchedBy,
	}
	if err := s.store.InsertSearchHistory(ctx, entry); err != nil {
		logging.Warn().Err(err).Msg("Failed to append search history")
	}
}

// enrichAsync generates the narrative in the background and re-upserts the
// record with CachedAt and ExpiresAt untouched, so enrichment never extends
// a record's life.
func (s *Service) enrichAsync(identity string) {
	s.enrichWG.Add(1)
	go func() {
		defer s.enrichWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		record, err := s.store.GetJourney(ctx, identity)
		if err != nil {
			return
		}
		narrative := BuildNarrative(record)
		record.Narrative = &narrative
		if err := s.store.UpsertJourney(ctx, record); err != nil {
			logging.Warn().Err(err).Msg("Failed to persist journey narrative")
		}
	}()
}

// WaitForEnrichment blocks until pending narrative enrichments finish. Used
// in tests and during shutdown.
func (s *Service) WaitForEnrichment() {
	s.enrichWG.Wait()
}

// computeMetrics derives the journey metrics from the merged profiles.
func computeMetrics(marketing *models.MarketingProfile, crm *models.CRMProfile, now time.Time) models.JourneyMetrics {
	m := models.JourneyMetrics{ConversionStatus: models.StatusLead}

	if marketing != nil {
		if !marketing.Contact.DateAdded.IsZero() {
			m.DaysInBase = int(now.Sub(marketing.Contact.DateAdded).Hours() / 24)
			if m.DaysInBase < 0 {
				m.DaysInBase = 0
			}
		}
		m.PointsGained = marketing.Contact.Points
		m.TotalActivities = len(marketing.Activities)
		for _, ev := range marketing.Activities {
			switch classifyEvent(ev.Event) {
			case eventEmailSent:
				m.EmailsSent++
			case eventEmailOpened:
				m.EmailsOpened++
			case eventPageVisit:
				m.PagesVisited++
			case eventFormSubmit:
				m.FormsSubmitted++
			case eventDownload:
				m.Downloads++
			case eventVideo:
				m.VideosWatched++
			}
		}
	}

	if crm != nil {
		switch {
		case crm.WonDeal != nil:
			m.ConversionStatus = models.StatusWon
			value := crm.WonDeal.Value
			m.DealValue = &value
			if marketing != nil && crm.WonDeal.WonTime != nil && !marketing.Contact.DateAdded.IsZero() {
				days := int(crm.WonDeal.WonTime.Sub(marketing.Contact.DateAdded).Hours() / 24)
				if days >= 0 {
					m.DaysToConversion = &days
				}
			}
		case hasOpenDeal(crm.Deals):
			m.ConversionStatus = models.StatusNegotiating
		case len(crm.Deals) > 0:
			// Every deal lost.
			m.ConversionStatus = models.StatusLost
		}
	}

	return m
}

func hasOpenDeal(deals []models.Deal) bool {
	for _, d := range deals {
		if d.Status == models.DealOpen {
			return true
		}
	}
	return false
}

type eventClass int

const (
	eventOther eventClass = iota
	eventEmailSent
	eventEmailOpened
	eventPageVisit
	eventFormSubmit
	eventDownload
	eventVideo
)

// classifyEvent maps marketing platform event names onto metric buckets.
func classifyEvent(event string) eventClass {
	switch {
	case strings.HasPrefix(event, "email.sent"):
		return eventEmailSent
	case strings.HasPrefix(event, "email.read"), strings.HasPrefix(event, "email.open"):
		return eventEmailOpened
	case strings.HasPrefix(event, "page.hit"), strings.HasPrefix(event, "page.visit"):
		return eventPageVisit
	case strings.HasPrefix(event, "form.submit"):
		return eventFormSubmit
	case strings.HasPrefix(event, "asset.download"):
		return eventDownload
	case strings.HasPrefix(event, "video"):
		return eventVideo
	default:
		return eventOther
	}
}
