// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package auth guards the admin dashboard.

There is exactly one admin identity, configured through ADMIN_USERNAME and
ADMIN_PASSWORD. The password is bcrypt-hashed once at startup and never kept
in plaintext after that.

Key Components:

  - AdminAuthenticator: credential check (bcrypt cost 12, constant-time
    username compare)
  - SessionStore: server-side session records, in memory or in BadgerDB
  - CookieManager: gorilla/sessions cookie signed with SESSION_SECRET that
    carries only the session ID
  - SessionManager: login/logout plumbing and the RequireAdmin middleware
  - Lockout: per-client backoff after repeated failed logins

Usage:

	admin, err := auth.NewAdminAuthenticator(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
	store, closeStore, err := auth.NewSessionStore(cfg.Security, clock.Real{})
	cookies := auth.NewCookieManager(cfg.Security)
	sessions := auth.NewSessionManager(store, cookies, clock.Real{}, cfg.Security.SessionTimeout)

	r.With(sessions.RequireAdmin).Get("/api/admin/users", h.AdminUsers)

Because the cookie only references a server-side record, logging out or
expiring a session takes effect immediately even if the browser keeps the
cookie.
*/
package auth
