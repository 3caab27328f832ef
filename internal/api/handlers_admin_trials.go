// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
	"github.com/tomtom215/jellygate/internal/trial"
	"github.com/tomtom215/jellygate/internal/validation"
)

// TrialSettings returns the current trial-mode settings.
//
// @Summary Get trial settings
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse{data=models.TrialSettings}
// @Router /api/admin/trial-settings [get]
func (h *Handler) TrialSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.GetTrialSettings(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to load trial settings")
		return
	}
	NewResponseWriter(w, r).Success(settings)
}

// UpdateTrialSettings applies a partial settings change. Existing trial
// records keep the duration they were created with.
//
// @Summary Update trial settings
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body models.TrialSettingsUpdate true "Fields to change"
// @Success 200 {object} APIResponse{data=models.TrialSettings}
// @Failure 400 {object} APIResponse
// @Router /api/admin/trial-settings [put]
func (h *Handler) UpdateTrialSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var update models.TrialSettingsUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondError(w, r, err, "")
		return
	}
	if verr := validation.ValidateStruct(&update); verr != nil {
		respondError(w, r, verr, "")
		return
	}

	settings, err := h.repo.UpdateTrialSettings(ctx, update)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidSettings) {
			respondError(w, r, validation.NewFieldError("settings", err.Error()), "")
			return
		}
		respondError(w, r, err, "Failed to update trial settings")
		return
	}

	h.invalidateUsers(r)
	h.recordActivity(ctx, models.LogEntry{
		Timestamp: h.clock.Now(),
		IP:        clientIP(r),
		Username:  adminName(r),
		Activity:  models.ActivityAdminAction,
		UserAgent: r.UserAgent(),
		Detail:    "update trial settings",
	})

	logging.Ctx(ctx).Info().Bool("enabled", settings.Enabled).Int("duration_days", settings.DurationDays).
		Str("expiry_action", string(settings.ExpiryAction)).Msg("Trial settings updated")
	NewResponseWriter(w, r).Success(settings)
}

// TrialUsers lists every trial record with its derived status.
//
// @Summary List trial users
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse{data=[]trial.View}
// @Router /api/admin/trial-users [get]
func (h *Handler) TrialUsers(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.GetAllTrialUsers(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to load trial records")
		return
	}
	views := trial.Describe(records, h.clock.Now())
	NewResponseWriter(w, r).SuccessList(views, len(views))
}

// ProcessExpiredTrials runs the expiry sweep now and returns its summary.
//
// @Summary Run the expiry sweep
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse{data=trial.Summary}
// @Failure 500 {object} APIResponse
// @Router /api/admin/process-expired-trials [post]
func (h *Handler) ProcessExpiredTrials(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to process expired trials")
		return
	}
	if summary.Processed > 0 {
		h.invalidateUsers(r)
	}
	NewResponseWriter(w, r).Success(summary)
}
