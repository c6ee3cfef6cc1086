// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint. Admin endpoints are rate limited per
// client IP; webhooks get a higher allowance since external systems batch
// their notifications.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestMetrics)

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(httprate.LimitByIP(600, time.Minute))
		r.Post("/{system}", h.Webhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		perMinute := h.cfg.Server.RequestsPerMinute
		if perMinute <= 0 {
			perMinute = 120
		}
		r.Use(httprate.LimitByIP(perMinute, time.Minute))

		r.Get("/systems", h.ListSystems)

		r.Post("/sync/{system}", h.TriggerSync)
		r.Get("/sync/{system}", h.SyncStatus)

		r.Get("/conflicts/{system}", h.ListConflicts)
		r.Post("/conflicts/{system}/{id}/resolve", h.ResolveConflict)

		r.Get("/suggestions/{system}", h.ListSuggestions)
		r.Delete("/suggestions/{id}", h.DismissSuggestion)

		r.Get("/settings/sync", h.GetSyncSetting)
		r.Put("/settings/sync", h.SetSyncSetting)

		r.Post("/reservations/{id}/push/{system}", h.QueuePush)
		r.Post("/reservations/{id}/cancel/{system}", h.QueueCancel)

		r.Get("/dlq/{system}", h.ListDLQ)
		r.Post("/dlq/{system}/replay-all", h.ReplayAllDLQ)
		r.Post("/dlq/entries/{seq}/replay", h.ReplayDLQ)
		r.Delete("/dlq/entries/{seq}", h.DeleteDLQ)
	})

	return r
}
