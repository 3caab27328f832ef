// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/jellygate/internal/auth"
	"github.com/tomtom215/jellygate/internal/cache"
	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/eventlog"
	"github.com/tomtom215/jellygate/internal/geoip"
	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/storage"
)

// components holds everything main wires into the handler and the
// supervisor tree. close releases them in reverse order of opening.
type components struct {
	repo         storage.Repository
	logs         *eventlog.Logs
	cache        cache.Cacher
	geo          *geoip.Resolver
	jellyfin     jellyfin.ClientInterface
	admin        *auth.AdminAuthenticator
	sessionStore auth.SessionStore
	sessions     *auth.SessionManager
	lockout      *auth.Lockout

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func (c *components) onClose(name string, fn func() error) {
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].close(); err != nil {
			logging.Error().Err(err).Str("component", c.closers[i].name).Msg("Error during close")
		}
	}
	c.closers = nil
}

// newComponents opens every component. On error, whatever was already
// opened is closed before returning.
func newComponents(ctx context.Context, cfg *config.Config, clk clock.Clock) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.close()
		}
	}()

	c.repo, err = storage.New(ctx, cfg.Storage, clk)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	c.onClose("storage", c.repo.Close)
	logging.Info().Str("backend", cfg.Storage.Backend).Msg("Storage initialized")

	c.logs, err = eventlog.Open(cfg.EventLog)
	if err != nil {
		return nil, fmt.Errorf("event logs: %w", err)
	}
	c.onClose("eventlog", c.logs.Close)

	c.cache, err = cache.New(ctx, cache.Config{
		Backend:    cfg.Cache.Backend,
		DefaultTTL: cfg.Cache.UsersTTL,
		RedisURL:   cfg.Cache.RedisURL,
		Prefix:     "jellygate:",
	}, clk)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.onClose("cache", c.cache.Close)

	c.geo, err = geoip.NewFromConfig(cfg.GeoIP, c.cache, cfg.Cache.GeoTTL)
	if err != nil {
		return nil, fmt.Errorf("geoip: %w", err)
	}

	client := jellyfin.NewClient(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey, cfg.Jellyfin.Timeout)
	if cfg.Jellyfin.CircuitBreaker {
		c.jellyfin = jellyfin.NewCircuitBreakerClient(client, jellyfin.DefaultCircuitBreakerConfig())
	} else {
		c.jellyfin = client
	}

	c.admin, err = auth.NewAdminAuthenticator(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("admin credentials: %w", err)
	}

	store, closeStore, err := auth.NewSessionStore(cfg.Security, clk)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	c.onClose("sessions", closeStore)
	c.sessionStore = store
	c.sessions = auth.NewSessionManager(store, auth.NewCookieManager(cfg.Security), clk, cfg.Security.SessionTimeout)
	c.lockout = auth.NewLockout(auth.DefaultLockoutConfig(), clk)

	return c, nil
}
