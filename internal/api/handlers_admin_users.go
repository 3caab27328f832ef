// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/jellygate/internal/cache"
	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
	"github.com/tomtom215/jellygate/internal/trial"
	"github.com/tomtom215/jellygate/internal/validation"
)

const usersCacheKey = "admin:users"

// AdminUser is an upstream account merged with what Jellygate knows about it.
type AdminUser struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	IsDisabled       bool        `json:"is_disabled"`
	IsAdministrator  bool        `json:"is_administrator"`
	CanDownload      bool        `json:"can_download"`
	LastLoginDate    *time.Time  `json:"last_login_date,omitempty"`
	LastActivityDate *time.Time  `json:"last_activity_date,omitempty"`
	SignupIP         string      `json:"signup_ip,omitempty"`
	SignedUpAt       *time.Time  `json:"signed_up_at,omitempty"`
	Trial            *trial.View `json:"trial,omitempty"`
}

// listUpstreamUsers returns the upstream user list, cached for usersTTL.
func (h *Handler) listUpstreamUsers(ctx context.Context) ([]jellyfin.User, error) {
	if h.cache == nil {
		return h.jellyfin.ListUsers(ctx)
	}
	return cache.GetOrLoad(ctx, h.cache, usersCacheKey, h.usersTTL(), h.jellyfin.ListUsers)
}

// invalidateUsers drops the cached user list after a mutation.
func (h *Handler) invalidateUsers(r *http.Request) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(r.Context(), usersCacheKey); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to invalidate users cache")
	}
}

// mergeUsers joins upstream users with trial and account records by
// case-insensitive username.
func mergeUsers(users []jellyfin.User, trials []models.TrialUser, accounts []models.UserAccount, now time.Time) []AdminUser {
	views := trial.Describe(trials, now)
	byTrial := make(map[string]*trial.View, len(views))
	for i := range views {
		byTrial[strings.ToLower(views[i].Username)] = &views[i]
	}
	byAccount := make(map[string]*models.UserAccount, len(accounts))
	for i := range accounts {
		byAccount[strings.ToLower(accounts[i].Username)] = &accounts[i]
	}

	out := make([]AdminUser, 0, len(users))
	for i := range users {
		u := &users[i]
		key := strings.ToLower(u.Name)
		au := AdminUser{
			ID:               u.ID,
			Name:             u.Name,
			IsDisabled:       u.IsDisabled(),
			IsAdministrator:  u.IsAdministrator(),
			CanDownload:      u.CanDownload(),
			LastLoginDate:    u.LastLoginDate,
			LastActivityDate: u.LastActivityDate,
			Trial:            byTrial[key],
		}
		if acct, ok := byAccount[key]; ok {
			au.SignupIP = acct.SignupIP
			created := acct.CreatedAt
			au.SignedUpAt = &created
		}
		out = append(out, au)
	}
	return out
}

// AdminUsers lists upstream users with their trial status.
//
// @Summary List users
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse{data=[]AdminUser}
// @Failure 401 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /api/admin/users [get]
func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.listUpstreamUsers(ctx)
	if err != nil {
		respondError(w, r, err, "Failed to list users")
		return
	}
	trials, err := h.repo.GetAllTrialUsers(ctx)
	if err != nil {
		respondError(w, r, err, "Failed to load trial records")
		return
	}
	accounts, err := h.repo.ListUserAccounts(ctx)
	if err != nil {
		respondError(w, r, err, "Failed to load account records")
		return
	}

	merged := mergeUsers(users, trials, accounts, h.clock.Now())
	NewResponseWriter(w, r).SuccessList(merged, len(merged))
}

// AdminUser returns one upstream user with its trial status.
//
// @Summary Get user
// @Tags Admin
// @Produce json
// @Param id path string true "Jellyfin user ID"
// @Success 200 {object} APIResponse{data=AdminUser}
// @Failure 500 {object} APIResponse
// @Router /api/admin/users/{id} [get]
func (h *Handler) AdminUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.jellyfin.GetUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, "Failed to load user")
		return
	}

	var trials []models.TrialUser
	switch rec, err := h.repo.GetTrialUser(ctx, user.Name); {
	case err == nil:
		trials = append(trials, *rec)
	case !errors.Is(err, storage.ErrNotFound):
		respondError(w, r, err, "Failed to load trial record")
		return
	}

	var accounts []models.UserAccount
	switch acct, err := h.repo.GetUserAccount(ctx, user.Name); {
	case err == nil:
		accounts = append(accounts, *acct)
	case !errors.Is(err, storage.ErrNotFound):
		respondError(w, r, err, "Failed to load account record")
		return
	}

	merged := mergeUsers([]jellyfin.User{*user}, trials, accounts, h.clock.Now())
	NewResponseWriter(w, r).Success(merged[0])
}

// UserAction applies an admin action to one or more upstream users.
//
// @Summary Apply a user action
// @Description delete, enable, disable, reset-password (one user) or bulk-disable (user_ids).
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body UserActionRequest true "Action"
// @Success 200 {object} APIResponse{data=UserActionResult}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /api/admin/users/action [post]
func (h *Handler) UserAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UserActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "")
		return
	}
	verr := validation.ValidateStruct(&req)
	if verr == nil && req.Action == ActionResetPassword {
		if res := h.policy.Validate(req.NewPassword, ""); !res.Valid {
			verr = validation.NewFieldError("new_password", res.Errors[0])
		}
	}
	if verr != nil {
		respondError(w, r, verr, "")
		return
	}

	result := UserActionResult{Action: req.Action}
	var err error
	switch req.Action {
	case ActionDelete:
		err = h.deleteUser(ctx, req.UserID)
	case ActionEnable:
		err = h.jellyfin.SetDisabled(ctx, req.UserID, false)
	case ActionDisable:
		err = h.jellyfin.SetDisabled(ctx, req.UserID, true)
	case ActionResetPassword:
		err = h.jellyfin.ResetPassword(ctx, req.UserID, req.NewPassword)
	case ActionBulkDisable:
		for _, id := range req.UserIDs {
			if derr := h.jellyfin.SetDisabled(ctx, id, true); derr != nil {
				logging.Ctx(ctx).Warn().Err(derr).Str("user_id", id).Msg("Bulk disable failed for user")
				result.Failed = append(result.Failed, id)
				continue
			}
			result.Processed++
		}
	}
	if err != nil {
		respondError(w, r, err, fmt.Sprintf("Failed to %s user", req.Action))
		return
	}
	if req.Action != ActionBulkDisable {
		result.Processed = 1
	}

	h.invalidateUsers(r)

	target := req.UserID
	if req.Action == ActionBulkDisable {
		target = fmt.Sprintf("%d users", len(req.UserIDs))
	}
	h.recordActivity(ctx, models.LogEntry{
		Timestamp: h.clock.Now(),
		IP:        clientIP(r),
		Username:  adminName(r),
		Activity:  models.ActivityAdminAction,
		UserAgent: r.UserAgent(),
		Detail:    req.Action + " " + sanitizeLogValue(target),
	})

	logging.Ctx(ctx).Info().Str("action", req.Action).Str("target", target).
		Int("processed", result.Processed).Int("failed", len(result.Failed)).Msg("Admin user action")
	NewResponseWriter(w, r).Success(result)
}

// deleteUser removes the upstream account and then the local trial and
// account records. Missing local records are not an error.
func (h *Handler) deleteUser(ctx context.Context, id string) error {
	user, err := h.jellyfin.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := h.jellyfin.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := h.repo.DeleteTrialUser(ctx, user.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.Ctx(ctx).Error().Err(err).Str("username", user.Name).Msg("Failed to delete trial record")
	}
	if err := h.repo.DeleteUserAccount(ctx, user.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.Ctx(ctx).Error().Err(err).Str("username", user.Name).Msg("Failed to delete account record")
	}
	return nil
}
