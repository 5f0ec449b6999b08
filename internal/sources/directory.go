// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/kpideck/kpideck/internal/config"
	"github.com/kpideck/kpideck/internal/database"
	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/models"
)

// Directory resolves per-tenant credentials and hands out ready source
// clients. Resolution order: stored integration row (encrypted at rest),
// then environment defaults, then SourceNotConfiguredError.
//
// Clients are cached per (source, tenant) so breaker counts and rate-limiter
// state survive across requests. A client is rebuilt only when the resolved
// credentials differ from the ones it was built with, so rotating a stored
// integration takes effect on the next request without a restart.
type Directory struct {
	db        *database.DB
	encryptor *config.CredentialEncryptor
	defaults  *config.SourcesConfig
	tracker   StatusTracker

	mu      sync.Mutex
	clients map[string]clientEntry
}

type clientEntry struct {
	client interface{}
	creds  models.Credentials
}

// NewDirectory builds the source directory. The tracker receives an audit
// row for every upstream call made by any client it hands out.
func NewDirectory(db *database.DB, enc *config.CredentialEncryptor, defaults *config.SourcesConfig, tracker StatusTracker) *Directory {
	return &Directory{
		db:        db,
		encryptor: enc,
		defaults:  defaults,
		tracker:   tracker,
		clients:   make(map[string]clientEntry),
	}
}

// clientFor returns the cached client for (source, tenant), building one via
// build when none exists or the effective credentials changed.
func clientFor[T any](ctx context.Context, d *Directory, tenant *models.Tenant, source string,
	build func(creds models.Credentials) (T, error)) (T, error) {
	var zero T
	creds, err := d.ResolveCredentials(ctx, tenant, source)
	if err != nil {
		return zero, err
	}

	key := source + ":" + tenant.Slug
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.clients[key]; ok && maps.Equal(entry.creds, creds) {
		return entry.client.(T), nil
	}
	client, err := build(creds)
	if err != nil {
		return zero, err
	}
	d.clients[key] = clientEntry{client: client, creds: creds}
	return client, nil
}

// ResolveCredentials returns the effective credential set for a
// (tenant, source) pair. A storage outage degrades to environment defaults
// so dashboards stay up while the database recovers.
func (d *Directory) ResolveCredentials(ctx context.Context, tenant *models.Tenant, source string) (models.Credentials, error) {
	if d.db != nil && d.encryptor != nil {
		integ, err := d.db.GetIntegration(ctx, d.encryptor, tenant.ID, source)
		switch {
		case err == nil:
			return integ.Credentials, nil
		case errors.Is(err, database.ErrIntegrationNotFound):
			// Fall through to environment defaults.
		default:
			logging.Warn().Err(err).
				Str("tenant", tenant.Slug).
				Str("source", source).
				Msg("Stored integration unavailable, falling back to environment defaults")
		}
	}

	creds := models.Credentials(d.defaultsFor(source).Map())
	if len(creds) == 0 {
		return nil, &models.SourceNotConfiguredError{Source: source, Tenant: tenant.Slug}
	}
	return creds, nil
}

func (d *Directory) defaultsFor(source string) config.SourceCredsConfig {
	if d.defaults == nil {
		return config.SourceCredsConfig{}
	}
	switch source {
	case SourceCRM:
		return d.defaults.CRM
	case SourceAccounting:
		return d.defaults.Accounting
	case SourceChat:
		return d.defaults.Chat
	case SourceSocial:
		return d.defaults.Social
	case SourceLearning:
		return d.defaults.Learning
	case SourceMarketing:
		return d.defaults.Marketing
	case SourceInvestment:
		return d.defaults.Investment
	default:
		return config.SourceCredsConfig{}
	}
}

// CRM returns the CRM client for the tenant.
func (d *Directory) CRM(ctx context.Context, tenant *models.Tenant) (CRMClient, error) {
	return clientFor(ctx, d, tenant, SourceCRM, func(creds models.Credentials) (CRMClient, error) {
		return NewCRMClient(tenant.Slug, &tenant.ID, creds, d.tracker)
	})
}

// Accounting returns the accounting client for the tenant.
func (d *Directory) Accounting(ctx context.Context, tenant *models.Tenant) (AccountingClient, error) {
	return clientFor(ctx, d, tenant, SourceAccounting, func(creds models.Credentials) (AccountingClient, error) {
		return NewAccountingClient(tenant.Slug, &tenant.ID, creds, d.tracker)
	})
}

// Chat returns the chat client for the tenant.
func (d *Directory) Chat(ctx context.Context, tenant *models.Tenant) (ChatClient, error) {
	return clientFor(ctx, d, tenant, SourceChat, func(creds models.Credentials) (ChatClient, error) {
		return NewChatClient(tenant.Slug, &tenant.ID, creds, d.tracker)
	})
}

// Social returns the social client for the tenant.
func (d *Directory) Social(ctx context.Context, tenant *models.Tenant) (SocialClient, error) {
	return clientFor(ctx, d, tenant, SourceSocial, func(creds models.Credentials) (SocialClient, error) {
		return NewSocialClient(tenant.Slug, &tenant.ID, creds, d.tracker)
	})
}

// Learning returns the learning platform client for the tenant.
func (d *Directory) Learning(ctx context.Context, tenant *models.Tenant) (LearningClient, error) {
	return clientFor(ctx, d, tenant, SourceLearning, func(creds models.Credentials) (LearningClient, error) {
		return NewLearningClient(tenant.Slug, &tenant.ID, creds, d.tracker)
	})
}

// Marketing returns the marketing automation client for the tenant.
func (d *Directory) Marketing(ctx context.Context, tenant *models.Tenant) (MarketingClient, error) {
	return clientFor(ctx, d, tenant, SourceMarketing, func(creds models.Credentials) (MarketingClient, error) {
		return NewMarketingClient(tenant.Slug, &tenant.ID, creds, d.tracker)
	})
}

// Investment returns the investment platform client for the tenant.
func (d *Directory) Investment(ctx context.Context, tenant *models.Tenant) (InvestmentClient, error) {
	return clientFor(ctx, d, tenant, SourceInvestment, func(creds models.Credentials) (InvestmentClient, error) {
		return NewInvestmentClient(tenant.Slug, &tenant.ID, creds, d.tracker)
	})
}
