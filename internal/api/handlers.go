// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"context"
	"time"

	"github.com/tomtom215/jellygate/internal/auth"
	"github.com/tomtom215/jellygate/internal/cache"
	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/eventlog"
	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/middleware"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
	"github.com/tomtom215/jellygate/internal/trial"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// Deps are the collaborators a Handler needs. Cache and Geo may be nil.
type Deps struct {
	Config   *config.Config
	Repo     storage.Repository
	Jellyfin jellyfin.ClientInterface
	Sweeper  *trial.Sweeper
	Logs     *eventlog.Logs
	Geo      middleware.Locator
	Cache    cache.Cacher
	Admin    *auth.AdminAuthenticator
	Sessions *auth.SessionManager
	Lockout  *auth.Lockout
	Clock    clock.Clock
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, background activity writes
//   - handlers_helpers.go: body decoding and query helpers
//   - handlers_health.go: health probes
//   - handlers_signup.go: public signup, password meter and location report
//   - handlers_admin.go: admin login, logout and session
//   - handlers_admin_users.go: upstream user listing and actions
//   - handlers_admin_trials.go: trial settings, trial users and the manual sweep
//   - handlers_admin_logs.go: analytics and raw log endpoints
type Handler struct {
	config    *config.Config
	repo      storage.Repository
	jellyfin  jellyfin.ClientInterface
	sweeper   *trial.Sweeper
	logs      *eventlog.Logs
	geo       middleware.Locator
	cache     cache.Cacher
	admin     *auth.AdminAuthenticator
	sessions  *auth.SessionManager
	lockout   *auth.Lockout
	clock     clock.Clock
	startTime time.Time
	policy    config.PasswordPolicy
}

// NewHandler creates a new API handler with all required dependencies.
//
// Example:
//
//	handler := api.NewHandler(api.Deps{Config: cfg, Repo: repo, ...})
//	router := api.NewRouter(handler, chiMiddleware, accessRecorder)
//	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: router.SetupChi()}
func NewHandler(d Deps) *Handler {
	clk := d.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{
		config:    d.Config,
		repo:      d.Repo,
		jellyfin:  d.Jellyfin,
		sweeper:   d.Sweeper,
		logs:      d.Logs,
		geo:       d.Geo,
		cache:     d.Cache,
		admin:     d.Admin,
		sessions:  d.Sessions,
		lockout:   d.Lockout,
		clock:     clk,
		startTime: clk.Now(),
		policy:    config.SignupPasswordPolicy(),
	}
}

// Wait blocks until background activity writes have finished.
func (h *Handler) Wait() {
	if h.logs != nil {
		h.logs.Wait()
	}
}

// recordActivity queues the entry for the activity log. The IP is resolved
// and the entry written after the response, in submission order.
func (h *Handler) recordActivity(ctx context.Context, entry models.LogEntry) {
	if h.logs == nil {
		return
	}
	h.logs.SubmitActivity(context.WithoutCancel(ctx), entry, middleware.GeoEnricher(h.geo))
}

// usersTTL is how long the admin users listing is cached.
func (h *Handler) usersTTL() time.Duration {
	if h.config != nil && h.config.Cache.UsersTTL > 0 {
		return h.config.Cache.UsersTTL
	}
	return 30 * time.Second
}
