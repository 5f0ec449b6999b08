// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kpideck/kpideck/internal/config"
	"github.com/kpideck/kpideck/internal/logging"
	"github.com/kpideck/kpideck/internal/metrics"
)

// Router assembles the HTTP surface.
type Router struct {
	handler *Handler
	cfg     *config.ServerConfig
}

// NewRouter builds the router around a wired handler.
func NewRouter(handler *Handler, cfg *config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup configures all routes and middleware and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-By"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if router.cfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindw))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", router.handler.Health)
		r.Get("/tenants", router.handler.Tenants)
		r.Get("/status", router.handler.Status)

		r.Route("/dashboard/{slug}/{module}", func(r chi.Router) {
			r.Get("/", router.handler.DashboardModule)
			r.Get("/snapshot", router.handler.DashboardSnapshot)
		})

		r.Route("/journey", func(r chi.Router) {
			r.Get("/history", router.handler.JourneyHistory)
			r.Get("/{email}", router.handler.JourneyLookup)
		})

		r.Post("/snapshots/run", router.handler.SnapshotsRun)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLogging records one log line and the Prometheus counters per
// request, keyed by the matched route pattern rather than the raw path so
// cardinality stays bounded.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, pattern, strconv.Itoa(ww.Status()), elapsed)
		logging.Debug().
			Str("method", r.Method).
			Str("path", pattern).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("Request handled")
	})
}
