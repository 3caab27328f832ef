// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the dependency pings of one health request.
const healthCheckTimeout = 3 * time.Second

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	StorageConnected  bool    `json:"storage_connected"`
	JellyfinConnected bool    `json:"jellyfin_connected"`
	Uptime            float64 `json:"uptime"`
}

// Health handles health check requests
//
// @Summary Get system health status
// @Description Returns storage and Jellyfin connectivity plus uptime. Always 200; status is healthy or degraded.
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	storageOK := h.repo != nil && h.repo.Ping(ctx) == nil
	jellyfinOK := h.jellyfin != nil && h.jellyfin.Ping(ctx) == nil

	status := "healthy"
	if !storageOK || !jellyfinOK {
		status = "degraded"
	}

	NewResponseWriter(w, r).Success(HealthStatus{
		Status:            status,
		Version:           Version,
		StorageConnected:  storageOK,
		JellyfinConnected: jellyfinOK,
		Uptime:            h.clock.Now().Sub(h.startTime).Seconds(),
	})
}

// HealthLive handles liveness probe requests.
// Returns 200 OK if the process is alive, regardless of dependencies
//
// @Summary Liveness probe
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": h.clock.Now().Sub(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests.
// Returns 503 until storage answers a ping. Jellyfin is not required: the
// portal still serves pages and the admin dashboard while it is down.
//
// @Summary Readiness probe
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	rw := NewResponseWriter(w, r)
	if h.repo == nil || h.repo.Ping(ctx) != nil {
		rw.ServiceUnavailable("Storage is not ready")
		return
	}
	rw.Success(map[string]interface{}{"ready": true})
}
