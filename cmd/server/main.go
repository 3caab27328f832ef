// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/jellygate/internal/api"
	"github.com/tomtom215/jellygate/internal/auth"
	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/middleware"
	"github.com/tomtom215/jellygate/internal/supervisor"
	"github.com/tomtom215/jellygate/internal/supervisor/services"
	"github.com/tomtom215/jellygate/internal/trial"
)

// lockoutCleanupInterval is how often idle login-failure records are dropped.
const lockoutCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Str("version", api.Version).Str("jellyfin_url", cfg.Jellyfin.URL).
		Str("storage", cfg.Storage.Backend).Str("eventlog", cfg.EventLog.Backend).
		Str("cache", cfg.Cache.Backend).Msg("Starting Jellygate")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, clock.Real{})
	stop()
	if err != nil {
		// run has already closed every component.
		logging.Fatal().Err(err).Msg("Jellygate failed")
	}
	logging.Info().Msg("Jellygate stopped")
}

// run wires the components and serves until ctx is cancelled. Components
// are closed on every return path, so storage is flushed even on a startup
// error.
//
//nolint:gocyclo // sequential setup steps
func run(ctx context.Context, cfg *config.Config, clk clock.Clock) error {
	c, err := newComponents(ctx, cfg, clk)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer c.close()

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.Security.SessionStore != auth.SessionStoreBadger && cfg.IsProduction() {
		logging.Warn().Msg("Admin sessions are kept in memory and will not survive a restart; set SESSION_STORE=badger")
	}

	if err := c.jellyfin.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("Jellyfin is not reachable yet; signups will fail until it is")
	} else {
		logging.Info().Msg("Connected to Jellyfin")
	}

	sweeper := trial.NewSweeper(c.repo, c.jellyfin, c.logs, c.geo, clk, trial.Config{
		Interval:    cfg.Trial.SweepInterval,
		SessionScan: cfg.Trial.SessionScan,
	})

	handler := api.NewHandler(api.Deps{
		Config:   cfg,
		Repo:     c.repo,
		Jellyfin: c.jellyfin,
		Sweeper:  sweeper,
		Logs:     c.logs,
		Geo:      c.geo,
		Cache:    c.cache,
		Admin:    c.admin,
		Sessions: c.sessions,
		Lockout:  c.lockout,
		Clock:    clk,
	})
	access := middleware.NewAccessRecorder(c.logs, c.geo, clk)

	router, err := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security), access)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddMaintenanceService(sweeper)
	tree.AddMaintenanceService(services.NewFunc("session-cleanup", func(ctx context.Context) error {
		return auth.RunCleanup(ctx, c.sessionStore, auth.DefaultCleanupInterval)
	}))
	tree.AddMaintenanceService(services.NewPeriodic("lockout-cleanup", lockoutCleanupInterval, func(context.Context) {
		if n := c.lockout.Cleanup(); n > 0 {
			logging.Debug().Int("count", n).Msg("Dropped idle login lockout records")
		}
	}))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Dur("sweep_interval", sweeper.Interval()).Msg("Supervisor tree starting")

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the timeout")
		}
	}

	// Queued log writes must land before the sinks close.
	handler.Wait()
	access.Wait()
	return nil
}
