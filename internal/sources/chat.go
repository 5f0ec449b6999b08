// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"fmt"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kpideck/kpideck/internal/models"
)

// chatClient talks to a Discord-compatible bot API. Auth is a Bot token
// header; stats come from the guild preview and channel listing.
type chatClient struct {
	core     *httpCore
	cb       *gobreaker.CircuitBreaker[interface{}]
	botToken string
	guildID  string
	baseURL  string
}

// NewChatClient builds a chat client for one tenant's credentials. Required
// keys: bot_token, guild_id. Optional: base_url (defaults to the public API).
func NewChatClient(tenant string, tenantID *int64, creds models.Credentials, tracker StatusTracker) (ChatClient, error) {
	if !creds.Has("bot_token", "guild_id") {
		return nil, &models.SourceNotConfiguredError{Source: SourceChat, Tenant: tenant}
	}
	baseURL := creds.Get("base_url")
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}
	return &chatClient{
		core:     newHTTPCore(SourceChat, tenant, tenantID, tracker),
		cb:       newBreaker(SourceChat, tenant),
		botToken: creds.Get("bot_token"),
		guildID:  creds.Get("guild_id"),
		baseURL:  baseURL,
	}, nil
}

type chatGuildPreviewWire struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	ApproximateMemberCount   int    `json:"approximate_member_count"`
	ApproximatePresenceCount int    `json:"approximate_presence_count"`
}

type chatChannelWire struct {
	ID                 string  `json:"id"`
	Type               int     `json:"type"`
	Name               string  `json:"name"`
	LastMessageID      *string `json:"last_message_id"`
	MessageCountWeekly int     `json:"message_count"` // bot-side rollup where available
}

func (c *chatClient) get(ctx context.Context, path, endpoint string, out interface{}) error {
	return c.core.doJSON(ctx, request{
		method:   http.MethodGet,
		url:      c.baseURL + path,
		headers:  map[string]string{"Authorization": "Bot " + c.botToken},
		endpoint: endpoint,
	}, out)
}

func (c *chatClient) Ping(ctx context.Context) error {
	_, err := executeBreaker(c.cb, func() (*struct{}, error) {
		var preview chatGuildPreviewWire
		err := c.get(ctx, fmt.Sprintf("/guilds/%s/preview", c.guildID), "ping", &preview)
		return &struct{}{}, err
	})
	return err
}

// CommunityStats reads the guild preview for member counts and the channel
// list for activity. Text channels (type 0) with a last message count as
// active.
func (c *chatClient) CommunityStats(ctx context.Context) (*CommunityStats, error) {
	return executeBreaker(c.cb, func() (*CommunityStats, error) {
		var preview chatGuildPreviewWire
		if err := c.get(ctx, fmt.Sprintf("/guilds/%s/preview", c.guildID), "guild_preview", &preview); err != nil {
			return nil, err
		}

		var channels []chatChannelWire
		if err := c.get(ctx, fmt.Sprintf("/guilds/%s/channels", c.guildID), "guild_channels", &channels); err != nil {
			return nil, err
		}

		stats := &CommunityStats{
			TotalMembers:  preview.ApproximateMemberCount,
			OnlineMembers: preview.ApproximatePresenceCount,
		}
		for _, ch := range channels {
			if ch.Type != 0 {
				continue
			}
			if ch.LastMessageID != nil {
				stats.ActiveChannels++
			}
			stats.MessagesWeek += ch.MessageCountWeekly
		}
		return stats, nil
	})
}
