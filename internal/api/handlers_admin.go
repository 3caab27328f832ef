// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/tomtom215/jellygate/internal/auth"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/validation"
)

// Login checks the admin credentials and starts a session.
//
// Failed attempts are counted per client IP. Once locked out the client
// gets 429 with Retry-After until the lockout lapses, whatever it sends.
//
// @Summary Admin login
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} APIResponse{data=SessionResponse}
// @Failure 401 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Router /api/admin/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ip := clientIP(r)

	if h.lockout != nil {
		if locked, remaining := h.lockout.Check(ip); locked {
			writeLockedOut(w, rw, remaining.Seconds())
			return
		}
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr, "")
		return
	}

	entry := models.LogEntry{
		Timestamp: h.clock.Now(),
		IP:        ip,
		Username:  req.Username,
		Activity:  models.ActivityAdminLogin,
		UserAgent: r.UserAgent(),
	}

	if err := h.admin.Verify(req.Username, req.Password); err != nil {
		entry.Detail = "failed"
		h.recordActivity(r.Context(), entry)

		if h.lockout != nil {
			if locked, d := h.lockout.Fail(ip); locked {
				logging.Ctx(r.Context()).Warn().Str("ip", ip).Dur("lockout", d).Msg("Admin login locked out")
			}
		}
		rw.Unauthorized("Invalid credentials")
		return
	}

	if h.lockout != nil {
		h.lockout.Succeed(ip)
	}

	session, err := h.sessions.Create(w, r, req.Username)
	if err != nil {
		respondError(w, r, err, "Failed to create session")
		return
	}

	h.recordActivity(r.Context(), entry)
	logging.Ctx(r.Context()).Info().Str("username", req.Username).Str("ip", ip).Msg("Admin logged in")
	rw.Success(SessionResponse{Authenticated: true, Username: session.Username, ExpiresAt: &session.ExpiresAt})
}

func writeLockedOut(w http.ResponseWriter, rw *ResponseWriter, seconds float64) {
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(seconds))))
	rw.TooManyRequests("Too many failed login attempts, try again later")
}

// Logout destroys the caller's session. It succeeds without one.
//
// @Summary Admin logout
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse
// @Router /api/admin/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		respondError(w, r, err, "Failed to end session")
		return
	}
	NewResponseWriter(w, r).Success(SessionResponse{Authenticated: false})
}

// Session reports whether the caller holds a live admin session. It never
// returns 401, so the dashboard can decide between the login form and the
// app.
//
// @Summary Current admin session
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse{data=SessionResponse}
// @Router /api/admin/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	session, err := h.sessions.Current(r)
	if err != nil || !session.Admin {
		rw.Success(SessionResponse{Authenticated: false})
		return
	}
	rw.Success(SessionResponse{Authenticated: true, Username: session.Username, ExpiresAt: &session.ExpiresAt})
}

// adminName returns the username of the session RequireAdmin attached.
func adminName(r *http.Request) string {
	if s := auth.SessionFromContext(r.Context()); s != nil {
		return s.Username
	}
	return ""
}
