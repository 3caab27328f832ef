// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/tomtom215/jellygate/internal/config"
)

// DefaultCookieName names the admin session cookie.
const DefaultCookieName = "jellygate_session"

const sessionIDKey = "sid"

// CookieManager reads and writes the signed admin session cookie.
type CookieManager struct {
	store *sessions.CookieStore
	name  string
}

// NewCookieManager signs cookies with cfg.SessionSecret. MaxAge follows the
// session timeout.
func NewCookieManager(cfg config.SecurityConfig) *CookieManager {
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	ttl := cfg.SessionTimeout
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	// Also bounds the signed timestamp, not just the browser attribute.
	store.MaxAge(store.Options.MaxAge)
	return &CookieManager{store: store, name: name}
}

// Name returns the cookie name.
func (m *CookieManager) Name() string { return m.name }

// SessionID returns the session ID from a valid cookie, or "". Tampered or
// foreign-signed cookies read as absent.
func (m *CookieManager) SessionID(r *http.Request) string {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return ""
	}
	id, _ := session.Values[sessionIDKey].(string)
	return id
}

// Save writes a cookie referencing sessionID.
func (m *CookieManager) Save(w http.ResponseWriter, r *http.Request, sessionID string) error {
	// A bad existing cookie still yields a usable fresh session.
	session, _ := m.store.Get(r, m.name) //nolint:errcheck // replaced below
	session.Values = map[interface{}]interface{}{sessionIDKey: sessionID}
	return session.Save(r, w)
}

// Clear expires the cookie.
func (m *CookieManager) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, m.name) //nolint:errcheck // cleared regardless
	session.Values = make(map[interface{}]interface{})
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
