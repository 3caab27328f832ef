// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
)

func TestSignup_CreatesAccountAndTrial(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	resp := h.signup("alice")

	if resp.UserID == "" || resp.Username != "alice" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Trial == nil {
		t.Fatal("expected trial in response")
	}
	if want := t0.Add(7 * 24 * time.Hour); !resp.Trial.ExpiryDate.Equal(want) {
		t.Errorf("expiry = %v, want %v", resp.Trial.ExpiryDate, want)
	}
	if resp.Trial.DurationDays != 7 {
		t.Errorf("duration_days = %d, want 7", resp.Trial.DurationDays)
	}

	user := h.upstream.UserByName("alice")
	if user == nil {
		t.Fatal("upstream user not created")
	}
	if user.IsAdministrator() {
		t.Error("signup user must not be an administrator")
	}
	if h.upstream.Password(user.ID) != "longenough1" {
		t.Error("upstream password not set")
	}

	ctx := context.Background()
	acct, err := h.repo.GetUserAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserAccount: %v", err)
	}
	if acct.JellyfinID != user.ID || acct.SignupIP != "192.0.2.1" || !acct.CreatedAt.Equal(t0) {
		t.Errorf("account = %+v", acct)
	}
	if _, err := h.repo.GetTrialUser(ctx, "alice"); err != nil {
		t.Errorf("GetTrialUser: %v", err)
	}

	h.flush()
	entries, err := h.logs.Activity.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Activity != models.ActivitySignup || entries[0].Username != "alice" {
		t.Fatalf("activity = %+v", entries)
	}
}

func TestSignup_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   SignupRequest
		field string
	}{
		{"short password", SignupRequest{Username: "alice", Password: "short1"}, "password"},
		{"no digit", SignupRequest{Username: "alice", Password: "longenough"}, "password"},
		{"missing password", SignupRequest{Username: "alice"}, "password"},
		{"short username", SignupRequest{Username: "al", Password: "longenough1"}, "username"},
		{"long username", SignupRequest{Username: "a123456789012345678901234567890123", Password: "longenough1"}, "username"},
		{"bad characters", SignupRequest{Username: "bad name!", Password: "longenough1"}, "username"},
		{"confirm mismatch", SignupRequest{Username: "alice", Password: "longenough1", ConfirmPassword: "longenough2"}, "confirm_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)

			rec := h.do(http.MethodPost, "/api/jellyfin/users", tt.req)
			details := expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
			if details[tt.field] == "" {
				t.Errorf("details = %v, want message for %s", details, tt.field)
			}
			if n := h.upstream.Requests(); n != 0 {
				t.Errorf("upstream saw %d requests, want 0", n)
			}
		})
	}
}

func TestSignup_PasswordMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/jellyfin/users", SignupRequest{Username: "alice", Password: "short1"})
	details := expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
	if got, want := details["password"], "password must be at least 8 characters (got 6)"; got != want {
		t.Errorf("password message = %q, want %q", got, want)
	}
}

func TestSignup_MalformedBody(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/jellyfin/users", `{"username": "alice",`)
	expectError(t, rec, http.StatusBadRequest, ErrCodeBadRequest)
}

func TestSignup_UsernameTaken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.upstream.AddUser("Alice", "whatever1", nil)

	rec := h.do(http.MethodPost, "/api/jellyfin/users", SignupRequest{Username: "alice", Password: "longenough1"})
	details := expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
	if details["username"] != "username is already taken" {
		t.Errorf("details = %v", details)
	}
	if _, err := h.repo.GetUserAccount(context.Background(), "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("account record written for a taken name: %v", err)
	}
}

func TestSignup_TrialDisabled(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	disabled := false
	if _, err := h.repo.UpdateTrialSettings(context.Background(), models.TrialSettingsUpdate{Enabled: &disabled}); err != nil {
		t.Fatalf("UpdateTrialSettings: %v", err)
	}

	resp := h.signup("bob")
	if resp.Trial != nil {
		t.Errorf("trial = %+v, want none", resp.Trial)
	}
	if _, err := h.repo.GetTrialUser(context.Background(), "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTrialUser err = %v, want ErrNotFound", err)
	}
}

func TestSignup_UpstreamFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		prefix string
	}{
		{"name lookup", http.MethodGet, "/Users"},
		{"create", http.MethodPost, "/Users/New"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.upstream.FailRequests(tt.method, tt.prefix, http.StatusInternalServerError)

			rec := h.do(http.MethodPost, "/api/jellyfin/users", SignupRequest{Username: "carol", Password: "longenough1"})
			expectError(t, rec, http.StatusInternalServerError, ErrCodeInternalError)

			env := decodeEnvelope(t, rec)
			if env.Error.Message != "Failed to create account" {
				t.Errorf("message = %q, upstream detail must not leak", env.Error.Message)
			}
			if _, err := h.repo.GetTrialUser(context.Background(), "carol"); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("trial record written after upstream failure: %v", err)
			}
		})
	}
}

func TestPasswordStrength(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/password-strength", PasswordCheckRequest{Password: "short1"})
	var weak struct {
		Valid    bool     `json:"valid"`
		Errors   []string `json:"errors"`
		Strength string   `json:"strength"`
	}
	decodeData(t, rec, &weak)
	if weak.Valid || len(weak.Errors) == 0 {
		t.Errorf("short1 = %+v, want invalid", weak)
	}

	rec = h.do(http.MethodPost, "/api/password-strength", PasswordCheckRequest{Password: "Longer-Pass-2026!"})
	var strong struct {
		Valid    bool   `json:"valid"`
		Strength string `json:"strength"`
	}
	decodeData(t, rec, &strong)
	if !strong.Valid {
		t.Errorf("strong password rejected: %+v", strong)
	}
	if strong.Strength == "weak" || strong.Strength == "fair" {
		t.Errorf("strength = %q, want at least good", strong.Strength)
	}
}

func TestUpdateClientLocation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	lat, lon := 52.52, 13.405
	rec := h.do(http.MethodPost, "/api/update-client-location", LocationRequest{Latitude: &lat, Longitude: &lon, Username: "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	h.flush()
	entries, err := h.logs.Activity.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Activity != models.ActivityLocationUpdate || e.Latitude == nil || *e.Latitude != lat || *e.Longitude != lon {
		t.Errorf("entry = %+v", e)
	}
}

func TestUpdateClientLocation_Invalid(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	lat, lon := 91.0, 13.4
	rec := h.do(http.MethodPost, "/api/update-client-location", LocationRequest{Latitude: &lat, Longitude: &lon})
	details := expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
	if details["latitude"] == "" {
		t.Errorf("details = %v", details)
	}

	rec = h.do(http.MethodPost, "/api/update-client-location", map[string]float64{"longitude": 1})
	details = expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
	if details["latitude"] != "latitude is required" {
		t.Errorf("details = %v", details)
	}
}
