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
	"github.com/tomtom215/jellygate/internal/trial"
)

func TestTrialSettings_GetAndPartialUpdate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cookie := h.login()

	var settings models.TrialSettings
	decodeData(t, h.do(http.MethodGet, "/api/admin/trial-settings", nil, cookie), &settings)
	if !settings.Enabled || settings.DurationDays != 7 || settings.ExpiryAction != models.ExpiryActionDisable {
		t.Fatalf("defaults = %+v", settings)
	}

	rec := h.do(http.MethodPut, "/api/admin/trial-settings", map[string]interface{}{"duration_days": 14}, cookie)
	decodeData(t, rec, &settings)
	if settings.DurationDays != 14 || !settings.Enabled || settings.ExpiryAction != models.ExpiryActionDisable {
		t.Errorf("after partial update = %+v", settings)
	}

	rec = h.do(http.MethodPut, "/api/admin/trial-settings", map[string]interface{}{"expiry_action": "delete", "enabled": false}, cookie)
	decodeData(t, rec, &settings)
	if settings.DurationDays != 14 || settings.Enabled || settings.ExpiryAction != models.ExpiryActionDelete {
		t.Errorf("after second update = %+v", settings)
	}
}

func TestTrialSettings_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"zero days", map[string]interface{}{"duration_days": 0}, "duration_days"},
		{"too many days", map[string]interface{}{"duration_days": 31}, "duration_days"},
		{"unknown action", map[string]interface{}{"expiry_action": "archive"}, "expiry_action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			cookie := h.login()

			rec := h.do(http.MethodPut, "/api/admin/trial-settings", tt.body, cookie)
			details := expectError(t, rec, http.StatusBadRequest, ErrCodeValidationFailed)
			if details[tt.field] == "" {
				t.Errorf("details = %v, want %s", details, tt.field)
			}

			settings, err := h.repo.GetTrialSettings(context.Background())
			if err != nil {
				t.Fatalf("GetTrialSettings: %v", err)
			}
			if settings.DurationDays != 7 || settings.ExpiryAction != models.ExpiryActionDisable {
				t.Errorf("settings changed by a rejected update: %+v", settings)
			}
		})
	}
}

func TestTrialSettings_DurationChangeKeepsExistingRecords(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.signup("early")
	cookie := h.login()
	h.do(http.MethodPut, "/api/admin/trial-settings", map[string]interface{}{"duration_days": 3}, cookie)
	late := h.signup("late")

	if late.Trial == nil || late.Trial.DurationDays != 3 {
		t.Fatalf("late trial = %+v", late.Trial)
	}
	rec, err := h.repo.GetTrialUser(context.Background(), "early")
	if err != nil {
		t.Fatalf("GetTrialUser: %v", err)
	}
	if rec.DurationDays != 7 || !rec.ExpiryDate.Equal(t0.Add(7*24*time.Hour)) {
		t.Errorf("early record rewritten: %+v", rec)
	}
}

func TestTrialUsers_Classification(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.signup("old")
	h.clock.Advance(6 * 24 * time.Hour)
	h.signup("new")
	h.clock.Advance(2 * 24 * time.Hour)
	cookie := h.login()

	var views []trial.View
	decodeData(t, h.do(http.MethodGet, "/api/admin/trial-users", nil, cookie), &views)
	status := map[string]trial.Status{}
	for _, v := range views {
		status[v.Username] = v.Status
	}
	if status["old"] != trial.StatusExpired || status["new"] != trial.StatusActive {
		t.Errorf("status = %v", status)
	}
}

func TestProcessExpiredTrials(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	resp := h.signup("lena")
	h.signup("mike")
	h.clock.Advance(7*24*time.Hour + time.Minute)
	h.signup("nora")
	cookie := h.login()

	var summary trial.Summary
	decodeData(t, h.do(http.MethodPost, "/api/admin/process-expired-trials", nil, cookie), &summary)
	if summary.Processed != 2 || summary.Failed != 0 || summary.Action != models.ExpiryActionDisable {
		t.Fatalf("summary = %+v", summary)
	}
	if !h.upstream.User(resp.UserID).IsDisabled() {
		t.Error("expired user not disabled upstream")
	}
	if h.upstream.UserByName("nora").IsDisabled() {
		t.Error("active user disabled")
	}

	decodeData(t, h.do(http.MethodPost, "/api/admin/process-expired-trials", nil, cookie), &summary)
	if summary.Processed != 0 || summary.Skipped != 2 {
		t.Errorf("second sweep = %+v", summary)
	}
}

func TestProcessExpiredTrials_Delete(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	del := models.ExpiryActionDelete
	if _, err := h.repo.UpdateTrialSettings(context.Background(), models.TrialSettingsUpdate{ExpiryAction: &del}); err != nil {
		t.Fatalf("UpdateTrialSettings: %v", err)
	}
	resp := h.signup("olga")
	h.clock.Advance(8 * 24 * time.Hour)
	cookie := h.login()

	var summary trial.Summary
	decodeData(t, h.do(http.MethodPost, "/api/admin/process-expired-trials", nil, cookie), &summary)
	if summary.Processed != 1 || summary.Action != models.ExpiryActionDelete {
		t.Fatalf("summary = %+v", summary)
	}
	if h.upstream.User(resp.UserID) != nil {
		t.Error("expired user still exists upstream")
	}
	if _, err := h.repo.GetTrialUser(context.Background(), "olga"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("trial record err = %v", err)
	}
}
