// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/metrics"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/trial"
	"github.com/tomtom215/jellygate/internal/validation"
)

// Signup creates a Jellyfin account for a visitor.
//
// The upstream account is the only step whose failure fails the request.
// The local account record, the trial record and the activity entry are
// best effort and logged when they fail.
//
// @Summary Create a Jellyfin account
// @Tags Signup
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup form"
// @Success 201 {object} APIResponse{data=SignupResponse}
// @Failure 400 {object} APIResponse "Validation failed or username taken"
// @Failure 429 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /api/jellyfin/users [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.RecordSignup("invalid")
		respondError(w, r, err, "")
		return
	}

	verr := validation.ValidateStruct(&req)
	if result := h.policy.Validate(req.Password, req.Username); !result.Valid {
		if verr == nil || verr.FieldErrors()["password"] == "" {
			verr = validation.Merge(verr, validation.NewFieldError("password", result.Errors[0]))
		}
	}
	if verr != nil {
		metrics.RecordSignup("invalid")
		respondError(w, r, verr, "")
		return
	}

	exists, err := h.jellyfin.UserExists(ctx, req.Username)
	if err != nil {
		metrics.RecordSignup("upstream_error")
		respondError(w, r, err, "Failed to create account")
		return
	}
	if exists {
		metrics.RecordSignup("taken")
		respondError(w, r, validation.NewFieldError("username", "username is already taken"), "")
		return
	}

	user, err := jellyfin.ProvisionUser(ctx, h.jellyfin, req.Username, req.Password, jellyfin.ProvisionOptions{
		DisableDownloads: h.config != nil && h.config.Jellyfin.DisableDownloads,
	})
	if err != nil {
		metrics.RecordSignup("upstream_error")
		respondError(w, r, err, "Failed to create account")
		return
	}

	now := h.clock.Now()
	ip := clientIP(r)
	log := logging.Ctx(ctx).With().Str("username", req.Username).Str("user_id", user.ID).Logger()

	if err := h.repo.CreateUserAccount(ctx, &models.UserAccount{
		Username:   req.Username,
		JellyfinID: user.ID,
		SignupIP:   ip,
		CreatedAt:  now,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to store account record")
	}

	resp := SignupResponse{UserID: user.ID, Username: user.Name}
	if resp.Username == "" {
		resp.Username = req.Username
	}

	record, err := trial.Enroll(ctx, h.repo, req.Username, now)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Failed to create trial record")
	case record != nil:
		resp.Trial = &SignupTrial{ExpiryDate: record.ExpiryDate, DurationDays: record.DurationDays}
	}

	entry := models.LogEntry{
		Timestamp: now,
		IP:        ip,
		Username:  req.Username,
		Activity:  models.ActivitySignup,
		UserAgent: r.UserAgent(),
	}
	if resp.Trial != nil {
		entry.Detail = fmt.Sprintf("trial %d days", resp.Trial.DurationDays)
	}
	h.recordActivity(ctx, entry)
	h.invalidateUsers(r)

	metrics.RecordSignup("created")
	log.Info().Bool("trial", resp.Trial != nil).Msg("Signup completed")
	NewResponseWriter(w, r).Created(resp)
}

// PasswordStrength scores a candidate password for the signup form's meter.
// Nothing is stored or logged.
//
// @Summary Score a password
// @Tags Signup
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=config.PasswordValidationResult}
// @Router /api/password-strength [post]
func (h *Handler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req PasswordCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr, "")
		return
	}
	NewResponseWriter(w, r).Success(h.policy.Validate(req.Password, req.Username))
}

// UpdateClientLocation records a browser-reported position in the activity
// log.
//
// @Summary Report browser geolocation
// @Tags Signup
// @Accept json
// @Produce json
// @Param request body LocationRequest true "Position"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Router /api/update-client-location [post]
func (h *Handler) UpdateClientLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr, "")
		return
	}

	h.recordActivity(r.Context(), models.LogEntry{
		Timestamp: h.clock.Now(),
		IP:        clientIP(r),
		Username:  req.Username,
		Activity:  models.ActivityLocationUpdate,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		UserAgent: r.UserAgent(),
	})
	NewResponseWriter(w, r).Success(map[string]bool{"recorded": true})
}
