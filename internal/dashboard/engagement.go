// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package dashboard

import (
	"context"

	"github.com/kpideck/kpideck/internal/models"
	"github.com/kpideck/kpideck/internal/sources"
)

// buildMarketing renders the marketing automation module.
func buildMarketing(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	client, err := s.dir.Marketing(ctx, tenant)
	if err != nil {
		return nil, err
	}

	current, previous, hasPrev, err := fetchPeriods(ctx, rng, compare, func(ctx context.Context, r models.DateRange) (*sources.MarketingStats, error) {
		return client.MarketingStats(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	prev := previous
	if !hasPrev {
		prev = &sources.MarketingStats{}
	}

	return &models.ModulePayload{
		ModuleID: "marketing",
		Title:    "Marketing",
		Summary: []models.KpiValue{
			numberKPI("total-contacts", "Contatos na base", current.TotalContacts,
				intTrend(current.TotalContacts, prev.TotalContacts, hasPrev, compare)),
			numberKPI("new-contacts", "Novos contatos", current.NewContacts,
				intTrend(current.NewContacts, prev.NewContacts, hasPrev, compare)),
			numberKPI("emails-sent", "Emails enviados", current.EmailsSent,
				intTrend(current.EmailsSent, prev.EmailsSent, hasPrev, compare)),
			percentKPI("open-rate", "Taxa de abertura", current.OpenRate,
				floatTrend(current.OpenRate, prev.OpenRate, hasPrev, compare)),
			numberKPI("form-submissions", "Formulários enviados", current.FormSubmissions,
				intTrend(current.FormSubmissions, prev.FormSubmissions, hasPrev, compare)),
		},
	}, nil
}

// buildSocial renders the social media module.
func buildSocial(s *Service, ctx context.Context, tenant *models.Tenant, rng models.DateRange, compare bool) (*models.ModulePayload, error) {
	client, err := s.dir.Social(ctx, tenant)
	if err != nil {
		return nil, err
	}

	current, previous, hasPrev, err := fetchPeriods(ctx, rng, compare, func(ctx context.Context, r models.DateRange) (*sources.SocialStats, error) {
		return client.SocialStats(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	prev := previous
	if !hasPrev {
		prev = &sources.SocialStats{}
	}

	return &models.ModulePayload{
		ModuleID: "social",
		Title:    "Social",
		Summary: []models.KpiValue{
			numberKPI("followers", "Seguidores", current.Followers,
				intTrend(current.Followers, prev.Followers, hasPrev, compare)),
			numberKPI("impressions", "Impressões", current.Impressions,
				intTrend(current.Impressions, prev.Impressions, hasPrev, compare)),
			numberKPI("reach", "Alcance", current.Reach,
				intTrend(current.Reach, prev.Reach, hasPrev, compare)),
			percentKPI("engagement-rate", "Engajamento", current.EngagementRate,
				floatTrend(current.EngagementRate, prev.EngagementRate, hasPrev, compare)),
			numberKPI("post-count", "Publicações", current.PostCount,
				intTrend(current.PostCount, prev.PostCount, hasPrev, compare)),
		},
	}, nil
}

// buildCommunity renders the chat community module. The chat platform reports
// point-in-time stats only, so there is no previous period and no trends.
func buildCommunity(s *Service, ctx context.Context, tenant *models.Tenant, _ models.DateRange, _ bool) (*models.ModulePayload, error) {
	client, err := s.dir.Chat(ctx, tenant)
	if err != nil {
		return nil, err
	}

	stats, err := client.CommunityStats(ctx)
	if err != nil {
		return nil, err
	}

	return &models.ModulePayload{
		ModuleID: "community",
		Title:    "Comunidade",
		Summary: []models.KpiValue{
			numberKPI("total-members", "Membros", stats.TotalMembers, nil),
			numberKPI("online-members", "Online agora", stats.OnlineMembers, nil),
			numberKPI("messages-week", "Mensagens (7 dias)", stats.MessagesWeek, nil),
			numberKPI("active-channels", "Canais ativos", stats.ActiveChannels, nil),
		},
	}, nil
}
