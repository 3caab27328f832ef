// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/jellygate/internal/middleware"
)

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order. RealIP must run before anything that
	// reads RemoteAddr: the request log, the rate limiters and the handlers.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.Compress())

	// ========================
	// Health and Metrics
	// ========================
	r.Route("/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(middleware.APISecurityHeaders)
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Embedded UI
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)

		pages := r.With()
		if router.access != nil {
			pages = r.With(router.access.Middleware)
		}
		pages.Get("/", router.page(pageIndex))
		pages.Get("/admin", router.page(pageAdmin))

		r.Handle("/static/*", http.StripPrefix("/static", staticCache(router.static)))
	})

	// ========================
	// Public API
	// ========================
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APISecurityHeaders)

		r.With(router.chiMiddleware.RateLimit()).Post("/jellyfin/users", h.Signup)
		r.With(router.chiMiddleware.RateLimitMeter()).Post("/password-strength", h.PasswordStrength)
		r.With(router.chiMiddleware.RateLimitMeter()).Post("/update-client-location", h.UpdateClientLocation)

		// ========================
		// Admin API
		// ========================
		r.Route("/admin", func(r chi.Router) {
			// Login has strictest rate limiting (5 attempts per 5 minutes)
			r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)

			r.Group(func(r chi.Router) {
				r.Use(h.sessions.RequireAdmin)

				r.Get("/users", h.AdminUsers)
				r.Post("/users/action", h.UserAction)
				r.Get("/users/{id}", h.AdminUser)

				r.Get("/trial-settings", h.TrialSettings)
				r.Put("/trial-settings", h.UpdateTrialSettings)
				r.Get("/trial-users", h.TrialUsers)
				r.Post("/process-expired-trials", h.ProcessExpiredTrials)

				r.Get("/analytics", h.Analytics)
				r.Get("/access-logs", h.AccessLogs)
				r.Get("/activity-logs", h.ActivityLogs)
			})
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).NotFound("Endpoint not found")
		})
	})

	return r
}

// staticCache sets Cache-Control by asset type before serving it.
func staticCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".css"):
			w.Header().Set("Cache-Control", "public, max-age=3600")
		case strings.HasSuffix(path, ".png"), strings.HasSuffix(path, ".svg"), strings.HasSuffix(path, ".ico"):
			w.Header().Set("Cache-Control", "public, max-age=604800")
		}
		next.ServeHTTP(w, r)
	})
}
