// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/jellygate/internal/auth"
	"github.com/tomtom215/jellygate/internal/cache"
	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/eventlog"
	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/middleware"
	"github.com/tomtom215/jellygate/internal/storage"
	"github.com/tomtom215/jellygate/internal/trial"
)

const (
	testAPIKey        = "test-api-key"
	testAdminUser     = "admin"
	testAdminPassword = "correct-horse-battery-9"
	testSecret        = "0123456789abcdef0123456789abcdef"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// harness is a fully wired router over in-memory storage, file-backed logs
// in a temp dir and a mock Jellyfin server.
type harness struct {
	t        *testing.T
	clock    *clock.Fake
	repo     *storage.MemoryRepository
	upstream *jellyfin.MockServer
	logs     *eventlog.Logs
	cache    *cache.Cache
	access   *middleware.AccessRecorder
	handler  *Handler
	server   http.Handler
}

type harnessOption func(*ChiMiddlewareConfig)

func withRateLimit(reqs int) harnessOption {
	return func(c *ChiMiddlewareConfig) {
		c.RateLimitDisabled = false
		c.RateLimitRequests = reqs
		c.RateLimitWindow = time.Minute
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	clk := clock.NewFake(t0)
	repo := storage.NewMemory(clk)
	upstream := jellyfin.NewMockServer(testAPIKey)
	t.Cleanup(upstream.Close)

	client := jellyfin.NewClient(upstream.URL(), testAPIKey, 5*time.Second)

	dir := t.TempDir()
	logs := eventlog.NewLogs(
		eventlog.NewFileSink(filepath.Join(dir, "access.json"), 1000),
		eventlog.NewFileSink(filepath.Join(dir, "activity.json"), 5000),
	)
	// Registered after TempDir, so pending writes land before it is removed.
	t.Cleanup(logs.Wait)
	mem := cache.NewMemory(30*time.Second, 100, clk)

	admin, err := auth.NewAdminAuthenticatorWithCost(testAdminUser, testAdminPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewAdminAuthenticatorWithCost: %v", err)
	}
	sec := config.SecurityConfig{SessionSecret: testSecret, SessionTimeout: time.Hour}
	sessions := auth.NewSessionManager(auth.NewMemorySessionStore(clk), auth.NewCookieManager(sec), clk, time.Hour)

	cfg := &config.Config{Cache: config.CacheConfig{UsersTTL: 30 * time.Second}}
	handler := NewHandler(Deps{
		Config:   cfg,
		Repo:     repo,
		Jellyfin: client,
		Sweeper:  trial.NewSweeper(repo, client, logs, nil, clk, trial.Config{Interval: time.Hour}),
		Logs:     logs,
		Cache:    mem,
		Admin:    admin,
		Sessions: sessions,
		Lockout:  auth.NewLockout(auth.DefaultLockoutConfig(), clk),
		Clock:    clk,
	})

	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.RateLimitDisabled = true
	for _, opt := range opts {
		opt(mwCfg)
	}
	access := middleware.NewAccessRecorder(logs, nil, clk)
	router, err := NewRouter(handler, NewChiMiddleware(mwCfg), access)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	return &harness{
		t:        t,
		clock:    clk,
		repo:     repo,
		upstream: upstream,
		logs:     logs,
		cache:    mem,
		access:   access,
		handler:  handler,
		server:   router.SetupChi(),
	}
}

// do sends a request through the router. body is JSON-encoded unless it is
// a string, which is sent verbatim.
func (h *harness) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

// login signs in as the admin and returns the session cookie.
func (h *harness) login() *http.Cookie {
	h.t.Helper()

	rec := h.do(http.MethodPost, "/api/admin/login", LoginRequest{Username: testAdminUser, Password: testAdminPassword})
	if rec.Code != http.StatusOK {
		h.t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c
		}
	}
	h.t.Fatal("login set no session cookie")
	return nil
}

// signup creates an account through the public API.
func (h *harness) signup(username string) SignupResponse {
	h.t.Helper()

	rec := h.do(http.MethodPost, "/api/jellyfin/users", SignupRequest{Username: username, Password: "longenough1", ConfirmPassword: "longenough1"})
	if rec.Code != http.StatusCreated {
		h.t.Fatalf("signup %s status = %d, body %s", username, rec.Code, rec.Body.String())
	}
	var resp SignupResponse
	decodeData(h.t, rec, &resp)
	return resp
}

// flush waits for background log writes.
func (h *harness) flush() {
	h.handler.Wait()
	h.access.Wait()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		Details   map[string]string `json:"details"`
		RequestID string            `json:"request_id"`
	} `json:"error"`
	Meta *APIMeta `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("response not successful: %s", rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

// expectError asserts status and error code, returning the field details.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]string {
	t.Helper()

	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if env.Error.Code != code {
		t.Fatalf("error code = %q, want %q", env.Error.Code, code)
	}
	return env.Error.Details
}
