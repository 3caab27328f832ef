// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package middleware provides the HTTP middleware shared by every route.

Key Components:

  - RequestID: X-Request-ID propagation wired into the logging context
  - RequestLogger: one zerolog line per request
  - PrometheusMetrics: request counters and latency keyed by route pattern
  - SecurityHeaders: CSP and related headers for the embedded UI
  - AccessRecorder: page views appended to the access log with geo data

Middleware Stack:

The router applies these in order:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors)
	r.Use(middleware.PrometheusMetrics)

AccessRecorder is applied only to the UI page routes, so API calls and
static assets never fill the bounded access log.
*/
package middleware
