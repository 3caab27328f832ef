// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
)

func newTestManager(clk clock.Clock) (*SessionManager, *MemorySessionStore) {
	store := NewMemorySessionStore(clk)
	return NewSessionManager(store, NewCookieManager(testSecurityConfig()), clk, time.Hour), store
}

func protected() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SessionFromContext(r.Context())
		if s == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(s.Username))
	})
}

func login(t *testing.T, m *SessionManager) (*Session, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", nil)
	req.RemoteAddr = "198.51.100.7:5000"
	s, err := m.Create(rec, req, "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return s, rec
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	t.Run("no cookie", func(t *testing.T) {
		t.Parallel()
		m, _ := newTestManager(clock.NewFake(t0))
		rec := httptest.NewRecorder()
		m.RequireAdmin(protected()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if !strings.Contains(rec.Body.String(), `"UNAUTHORIZED"`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("valid session", func(t *testing.T) {
		t.Parallel()
		m, _ := newTestManager(clock.NewFake(t0))
		s, loginRec := login(t, m)
		if s.IP != "198.51.100.7" {
			t.Errorf("session IP = %q", s.IP)
		}

		rec := httptest.NewRecorder()
		m.RequireAdmin(protected()).ServeHTTP(rec, cookieFrom(t, loginRec))
		if rec.Code != http.StatusOK || rec.Body.String() != "admin" {
			t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("expired session", func(t *testing.T) {
		t.Parallel()
		clk := clock.NewFake(t0)
		m, _ := newTestManager(clk)
		_, loginRec := login(t, m)

		clk.Advance(61 * time.Minute)
		rec := httptest.NewRecorder()
		m.RequireAdmin(protected()).ServeHTTP(rec, cookieFrom(t, loginRec))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("activity slides expiry", func(t *testing.T) {
		t.Parallel()
		clk := clock.NewFake(t0)
		m, _ := newTestManager(clk)
		_, loginRec := login(t, m)

		for i := 0; i < 3; i++ {
			clk.Advance(45 * time.Minute)
			rec := httptest.NewRecorder()
			m.RequireAdmin(protected()).ServeHTTP(rec, cookieFrom(t, loginRec))
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: status = %d", i, rec.Code)
			}
		}
	})

	t.Run("non-admin session", func(t *testing.T) {
		t.Parallel()
		m, store := newTestManager(clock.NewFake(t0))
		s, loginRec := login(t, m)
		s.Admin = false
		if err := store.Create(context.Background(), s); err != nil {
			t.Fatal(err)
		}

		rec := httptest.NewRecorder()
		m.RequireAdmin(protected()).ServeHTTP(rec, cookieFrom(t, loginRec))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRequireAdmin_ReissuesCookie(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(clock.NewFake(t0))
	s, loginRec := login(t, m)

	rec := httptest.NewRecorder()
	m.RequireAdmin(protected()).ServeHTTP(rec, cookieFrom(t, loginRec))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var refreshed *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			refreshed = c
		}
	}
	if refreshed == nil {
		t.Fatal("authenticated request did not reissue the session cookie")
	}
	if refreshed.MaxAge != int(time.Hour.Seconds()) {
		t.Errorf("MaxAge = %d, want %d", refreshed.MaxAge, int(time.Hour.Seconds()))
	}

	// The reissued cookie alone keeps the session.
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(refreshed)
	if got := m.cookies.SessionID(next); got != s.ID {
		t.Errorf("reissued cookie session = %q, want %q", got, s.ID)
	}
}

func TestSessionManager_CreateReplacesPriorSession(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(clock.NewFake(t0))

	first, firstRec := login(t, m)
	rec := httptest.NewRecorder()
	second, err := m.Create(rec, cookieFrom(t, firstRec), "admin")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("session ID was reused")
	}
	if _, err := store.Get(context.Background(), first.ID); err == nil {
		t.Error("prior session should be deleted on re-login")
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d sessions, want 1", store.Len())
	}
}

func TestSessionManager_Destroy(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(clock.NewFake(t0))
	_, loginRec := login(t, m)
	req := cookieFrom(t, loginRec)

	rec := httptest.NewRecorder()
	if err := m.Destroy(rec, req); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if store.Len() != 0 {
		t.Error("server-side session should be gone")
	}

	// The old cookie no longer authenticates even if the browser keeps it.
	after := httptest.NewRecorder()
	m.RequireAdmin(protected()).ServeHTTP(after, cookieFrom(t, loginRec))
	if after.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", after.Code)
	}

	// Logging out twice is harmless.
	if err := m.Destroy(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil)); err != nil {
		t.Errorf("Destroy() without session error = %v", err)
	}
}

func TestSessionManager_Current(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(clock.NewFake(t0))

	if _, err := m.Current(httptest.NewRequest(http.MethodGet, "/", nil)); err != ErrSessionNotFound {
		t.Errorf("Current() error = %v, want ErrSessionNotFound", err)
	}
	s, loginRec := login(t, m)
	got, err := m.Current(cookieFrom(t, loginRec))
	if err != nil || got.ID != s.ID {
		t.Errorf("Current() = %v, %v", got, err)
	}
}
