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

	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
	"github.com/tomtom215/jellygate/internal/trial"
)

func findUser(users []AdminUser, name string) *AdminUser {
	for i := range users {
		if users[i].Name == name {
			return &users[i]
		}
	}
	return nil
}

func TestAdminUsers_MergesTrialInfo(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.upstream.AddUser("owner", "pw", jellyfin.Policy{"IsAdministrator": true})
	h.signup("bob")
	h.clock.Advance(6 * 24 * time.Hour)
	cookie := h.login()

	rec := h.do(http.MethodGet, "/api/admin/users", nil, cookie)
	var users []AdminUser
	decodeData(t, rec, &users)
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}

	owner := findUser(users, "owner")
	if owner == nil || !owner.IsAdministrator || owner.Trial != nil {
		t.Errorf("owner = %+v", owner)
	}
	bob := findUser(users, "bob")
	if bob == nil || bob.Trial == nil {
		t.Fatalf("bob = %+v", bob)
	}
	if bob.Trial.Status != trial.StatusExpiring {
		t.Errorf("bob status = %q, want expiring", bob.Trial.Status)
	}
	if bob.SignupIP != "192.0.2.1" || bob.SignedUpAt == nil {
		t.Errorf("bob account fields = %+v", bob)
	}

	env := decodeEnvelope(t, rec)
	if env.Meta == nil || env.Meta.Count == nil || *env.Meta.Count != 2 {
		t.Errorf("meta = %+v, want count 2", env.Meta)
	}
}

func TestAdminUsers_CachedUntilMutation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()

	first := h.upstream.AddUser("first", "pw", nil)
	h.do(http.MethodGet, "/api/admin/users", nil, cookie)

	// Added behind the cache's back.
	h.upstream.AddUser("second", "pw", nil)
	var users []AdminUser
	decodeData(t, h.do(http.MethodGet, "/api/admin/users", nil, cookie), &users)
	if len(users) != 1 {
		t.Fatalf("users = %d, want the cached 1", len(users))
	}

	rec := h.do(http.MethodPost, "/api/admin/users/action", UserActionRequest{Action: ActionDisable, UserID: first}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d, body %s", rec.Code, rec.Body.String())
	}

	decodeData(t, h.do(http.MethodGet, "/api/admin/users", nil, cookie), &users)
	if len(users) != 2 {
		t.Fatalf("users = %d after mutation, want 2", len(users))
	}
	if u := findUser(users, "first"); u == nil || !u.IsDisabled {
		t.Errorf("first = %+v, want disabled", u)
	}
}

func TestAdminUsers_ExpiresFromCache(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()

	h.do(http.MethodGet, "/api/admin/users", nil, cookie)
	h.upstream.AddUser("late", "pw", nil)
	h.clock.Advance(31 * time.Second)

	var users []AdminUser
	decodeData(t, h.do(http.MethodGet, "/api/admin/users", nil, cookie), &users)
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1 after TTL", len(users))
	}
}

func TestAdminUser_Detail(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	resp := h.signup("dana")
	cookie := h.login()

	var user AdminUser
	decodeData(t, h.do(http.MethodGet, "/api/admin/users/"+resp.UserID, nil, cookie), &user)
	if user.Name != "dana" || user.Trial == nil || user.Trial.Status != trial.StatusActive {
		t.Errorf("user = %+v", user)
	}

	rec := h.do(http.MethodGet, "/api/admin/users/user-9999", nil, cookie)
	expectError(t, rec, http.StatusInternalServerError, ErrCodeInternalError)
}

func TestUserAction_EnableDisable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()
	id := h.upstream.AddUser("erin", "pw", nil)

	for _, step := range []struct {
		action   string
		disabled bool
	}{
		{ActionDisable, true},
		{ActionEnable, false},
	} {
		rec := h.do(http.MethodPost, "/api/admin/users/action", UserActionRequest{Action: step.action, UserID: id}, cookie)
		var result UserActionResult
		decodeData(t, rec, &result)
		if result.Processed != 1 {
			t.Errorf("%s processed = %d", step.action, result.Processed)
		}
		if got := h.upstream.User(id).IsDisabled(); got != step.disabled {
			t.Errorf("after %s disabled = %v", step.action, got)
		}
	}

	h.flush()
	entries, err := h.logs.Activity.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	actions := 0
	for _, e := range entries {
		if e.Activity == models.ActivityAdminAction {
			actions++
			if e.Username != testAdminUser {
				t.Errorf("admin action attributed to %q", e.Username)
			}
		}
	}
	if actions != 2 {
		t.Errorf("admin-action entries = %d, want 2", actions)
	}
}

func TestUserAction_ResetPassword(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()
	id := h.upstream.AddUser("frank", "old-password1", nil)

	rec := h.do(http.MethodPost, "/api/admin/users/action",
		UserActionRequest{Action: ActionResetPassword, UserID: id, NewPassword: "weak"}, cookie)
	details := expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
	if details["new_password"] == "" {
		t.Errorf("details = %v", details)
	}

	rec = h.do(http.MethodPost, "/api/admin/users/action",
		UserActionRequest{Action: ActionResetPassword, UserID: id, NewPassword: "new-password2"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := h.upstream.Password(id); got != "new-password2" {
		t.Errorf("password = %q", got)
	}
}

func TestUserAction_DeleteRemovesLocalRecords(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	resp := h.signup("gina")
	cookie := h.login()

	rec := h.do(http.MethodPost, "/api/admin/users/action", UserActionRequest{Action: ActionDelete, UserID: resp.UserID}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if h.upstream.User(resp.UserID) != nil {
		t.Error("upstream user still present")
	}
	ctx := context.Background()
	if _, err := h.repo.GetTrialUser(ctx, "gina"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("trial record err = %v", err)
	}
	if _, err := h.repo.GetUserAccount(ctx, "gina"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("account record err = %v", err)
	}
}

func TestUserAction_UpstreamFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()
	id := h.upstream.AddUser("hank", "pw", nil)
	h.upstream.FailRequests(http.MethodPost, "/Users/"+id+"/Policy", http.StatusBadGateway)

	rec := h.do(http.MethodPost, "/api/admin/users/action", UserActionRequest{Action: ActionDisable, UserID: id}, cookie)
	expectError(t, rec, http.StatusInternalServerError, ErrCodeInternalError)
}

func TestUserAction_BulkDisable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()

	a := h.upstream.AddUser("ivy", "pw", nil)
	b := h.upstream.AddUser("jack", "pw", nil)
	c := h.upstream.AddUser("kim", "pw", nil)
	h.upstream.FailRequests(http.MethodPost, "/Users/"+c+"/Policy", http.StatusInternalServerError)

	rec := h.do(http.MethodPost, "/api/admin/users/action",
		UserActionRequest{Action: ActionBulkDisable, UserIDs: []string{a, b, c}}, cookie)
	var result UserActionResult
	decodeData(t, rec, &result)

	if result.Processed != 2 || len(result.Failed) != 1 || result.Failed[0] != c {
		t.Errorf("result = %+v", result)
	}
	if !h.upstream.User(a).IsDisabled() || !h.upstream.User(b).IsDisabled() {
		t.Error("bulk disable did not disable every reachable user")
	}
}

func TestUserAction_Validation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()

	tests := []struct {
		name  string
		req   UserActionRequest
		field string
	}{
		{"unknown action", UserActionRequest{Action: "promote", UserID: "x"}, "action"},
		{"missing action", UserActionRequest{UserID: "x"}, "action"},
		{"missing user", UserActionRequest{Action: ActionDisable}, "user_id"},
		{"bulk without ids", UserActionRequest{Action: ActionBulkDisable}, "user_ids"},
		{"reset without password", UserActionRequest{Action: ActionResetPassword, UserID: "x"}, "new_password"},
	}

	for _, tt := range tests {
		rec := h.do(http.MethodPost, "/api/admin/users/action", tt.req, cookie)
		details := expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
		if details[tt.field] == "" {
			t.Errorf("%s: details = %v, want %s", tt.name, details, tt.field)
		}
	}
}
