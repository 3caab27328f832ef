// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package api provides the HTTP layer for Jellygate: the public signup API,
the admin API and the embedded pages.

Key Components:

  - Router: chi route table and middleware stack
  - Handler: request handlers, split by area across handlers_*.go
  - Response formatting: the APIResponse envelope written by ResponseWriter
  - ChiMiddleware: go-chi/cors and go-chi/httprate factories

API Categories:

1. Public (/api/):
  - POST /api/jellyfin/users creates an account (rate limited)
  - POST /api/password-strength scores a password for the form's meter
  - POST /api/update-client-location records a browser-reported position

2. Admin (/api/admin/):
  - login, logout and session
  - users: list, detail and actions (delete, enable, disable,
    reset-password, bulk-disable)
  - trial-settings, trial-users and process-expired-trials
  - analytics, access-logs and activity-logs

3. Operations:
  - /health, /health/live and /health/ready
  - /metrics (Prometheus)

Error Responses:

Every JSON error uses the same envelope:

	{"success": false,
	 "error": {"code": "VALIDATION_FAILED", "message": "Validation failed",
	           "details": {"username": "username is already taken"},
	           "request_id": "..."},
	 "meta": {...}}

Validation failures are 400 VALIDATION_FAILED with a field map, a missing
admin session is 401 UNAUTHORIZED, and upstream or storage failures are 500
INTERNAL_ERROR with a fixed message. The underlying error is only logged.

Usage Example:

	handler := api.NewHandler(api.Deps{Config: cfg, Repo: repo, Jellyfin: client, ...})
	router, err := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security), access)
	if err != nil {
	    return err
	}
	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: router.SetupChi()}

Thread Safety:

All handlers are safe for concurrent use. Activity entries are written on
background goroutines after the response; Handler.Wait blocks until they
are flushed.
*/
package api
