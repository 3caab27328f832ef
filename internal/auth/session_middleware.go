// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/logging"
)

type contextKey string

const sessionContextKey contextKey = "admin_session"

// SessionManager ties the session store to the cookie. Sessions slide: each
// authenticated request pushes the server-side expiry out by the full TTL
// and reissues the cookie, whose signed timestamp and MaxAge carry the same
// bound.
type SessionManager struct {
	store   SessionStore
	cookies *CookieManager
	clock   clock.Clock
	ttl     time.Duration
}

// NewSessionManager creates a session manager.
func NewSessionManager(store SessionStore, cookies *CookieManager, clk clock.Clock, ttl time.Duration) *SessionManager {
	if clk == nil {
		clk = clock.Real{}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{store: store, cookies: cookies, clock: clk, ttl: ttl}
}

// Store returns the underlying session store.
func (m *SessionManager) Store() SessionStore { return m.store }

// Create starts a new admin session and sets the cookie. Any session the
// request already referenced is deleted first so a pre-set ID can never be
// promoted to an authenticated one.
func (m *SessionManager) Create(w http.ResponseWriter, r *http.Request, username string) (*Session, error) {
	ctx := r.Context()
	if oldID := m.cookies.SessionID(r); oldID != "" {
		//nolint:errcheck // best effort, the new ID is what matters
		m.store.Delete(ctx, oldID)
	}

	session := NewSession(username, m.clock.Now(), m.ttl)
	session.IP = clientIP(r)
	session.UserAgent = r.UserAgent()

	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := m.cookies.Save(w, r, session.ID); err != nil {
		//nolint:errcheck // unreachable without a cookie
		m.store.Delete(ctx, session.ID)
		return nil, err
	}
	return session, nil
}

// Current returns the live session referenced by the request cookie.
func (m *SessionManager) Current(r *http.Request) (*Session, error) {
	id := m.cookies.SessionID(r)
	if id == "" {
		return nil, ErrSessionNotFound
	}
	return m.store.Get(r.Context(), id)
}

// Destroy deletes the server-side session and expires the cookie. It is
// safe to call without a session.
func (m *SessionManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	if id := m.cookies.SessionID(r); id != "" {
		if err := m.store.Delete(r.Context(), id); err != nil {
			return err
		}
	}
	return m.cookies.Clear(w, r)
}

// RequireAdmin rejects requests without a live admin session with 401.
func (m *SessionManager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.Current(r)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Session lookup error")
			}
			writeUnauthorized(w, r)
			return
		}
		if !session.Admin {
			writeUnauthorized(w, r)
			return
		}

		if err := m.store.Touch(r.Context(), session.ID, m.clock.Now().Add(m.ttl)); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to touch session")
		} else if err := m.cookies.Save(w, r, session.ID); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to refresh session cookie")
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the session RequireAdmin attached, or nil.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}

// writeUnauthorized mirrors the api package envelope; auth cannot import api.
func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	body := map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":       "UNAUTHORIZED",
			"message":    "Authentication required",
			"request_id": logging.RequestIDFromContext(r.Context()),
		},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Error encoding unauthorized response")
	}
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP
// middleware has already rewritten behind a proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
