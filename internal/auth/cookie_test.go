// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/jellygate/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		SessionSecret:  testSecret,
		SessionTimeout: time.Hour,
	}
}

// cookieFrom replays the Set-Cookie header of rec on a new request.
func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestCookieManager_RoundTrip(t *testing.T) {
	t.Parallel()
	m := NewCookieManager(testSecurityConfig())

	rec := httptest.NewRecorder()
	if err := m.Save(rec, httptest.NewRequest(http.MethodPost, "/", nil), "session-123"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies", len(cookies))
	}
	c := cookies[0]
	if c.Name != DefaultCookieName || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.MaxAge != 3600 {
		t.Errorf("cookie attributes = %+v", c)
	}
	if strings.Contains(c.Value, "session-123") {
		t.Error("session ID should be encoded, not plaintext")
	}

	if got := m.SessionID(cookieFrom(t, rec)); got != "session-123" {
		t.Errorf("SessionID() = %q", got)
	}
}

func TestCookieManager_SecureFlag(t *testing.T) {
	t.Parallel()
	cfg := testSecurityConfig()
	cfg.CookieSecure = true
	cfg.CookieName = "custom"
	m := NewCookieManager(cfg)

	rec := httptest.NewRecorder()
	if err := m.Save(rec, httptest.NewRequest(http.MethodPost, "/", nil), "x"); err != nil {
		t.Fatal(err)
	}
	c := rec.Result().Cookies()[0]
	if !c.Secure || c.Name != "custom" {
		t.Errorf("cookie = %+v", c)
	}
}

func TestCookieManager_RejectsForeignSignature(t *testing.T) {
	t.Parallel()

	other := testSecurityConfig()
	other.SessionSecret = "ffffffffffffffffffffffffffffffff"
	rec := httptest.NewRecorder()
	if err := NewCookieManager(other).Save(rec, httptest.NewRequest(http.MethodPost, "/", nil), "forged"); err != nil {
		t.Fatal(err)
	}

	if got := NewCookieManager(testSecurityConfig()).SessionID(cookieFrom(t, rec)); got != "" {
		t.Errorf("SessionID() = %q, want empty for foreign cookie", got)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "garbage"})
	if got := NewCookieManager(testSecurityConfig()).SessionID(r); got != "" {
		t.Errorf("SessionID() = %q for garbage cookie", got)
	}
}

func TestCookieManager_Clear(t *testing.T) {
	t.Parallel()
	m := NewCookieManager(testSecurityConfig())

	rec := httptest.NewRecorder()
	if err := m.Clear(rec, httptest.NewRequest(http.MethodPost, "/", nil)); err != nil {
		t.Fatal(err)
	}
	c := rec.Result().Cookies()[0]
	if c.MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative", c.MaxAge)
	}
}
