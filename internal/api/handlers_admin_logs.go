// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"net/http"

	"github.com/tomtom215/jellygate/internal/analytics"
	"github.com/tomtom215/jellygate/internal/eventlog"
)

// Limits for the raw log endpoints.
const (
	defaultLogLimit = 100
	maxLogLimit     = 5000
)

// AnalyticsResponse pairs the visit summary with a summary of the activity
// log.
type AnalyticsResponse struct {
	Visits   analytics.Summary `json:"visits"`
	Activity analytics.Summary `json:"activity"`
}

// Analytics summarizes the access and activity logs.
//
// @Summary Visit analytics
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse{data=AnalyticsResponse}
// @Router /api/admin/analytics [get]
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	access, err := h.logs.Access.Recent(ctx, 0)
	if err != nil {
		respondError(w, r, err, "Failed to read access log")
		return
	}
	activity, err := h.logs.Activity.Recent(ctx, 0)
	if err != nil {
		respondError(w, r, err, "Failed to read activity log")
		return
	}

	now := h.clock.Now()
	NewResponseWriter(w, r).Success(AnalyticsResponse{
		Visits:   analytics.Summarize(access, now),
		Activity: analytics.Summarize(activity, now),
	})
}

// AccessLogs returns the newest access-log entries.
//
// @Summary Recent access log
// @Tags Admin
// @Produce json
// @Param limit query int false "Entries to return (default 100, max 5000)"
// @Success 200 {object} APIResponse{data=[]models.LogEntry}
// @Router /api/admin/access-logs [get]
func (h *Handler) AccessLogs(w http.ResponseWriter, r *http.Request) {
	h.recentLogs(w, r, h.logs.Access, "access")
}

// ActivityLogs returns the newest activity-log entries.
//
// @Summary Recent activity log
// @Tags Admin
// @Produce json
// @Param limit query int false "Entries to return (default 100, max 5000)"
// @Success 200 {object} APIResponse{data=[]models.LogEntry}
// @Router /api/admin/activity-logs [get]
func (h *Handler) ActivityLogs(w http.ResponseWriter, r *http.Request) {
	h.recentLogs(w, r, h.logs.Activity, "activity")
}

func (h *Handler) recentLogs(w http.ResponseWriter, r *http.Request, sink eventlog.Sink, name string) {
	limit := getIntParam(r, "limit", defaultLogLimit, maxLogLimit)
	entries, err := sink.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, "Failed to read "+name+" log")
		return
	}
	NewResponseWriter(w, r).SuccessList(entries, len(entries))
}
