// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/jellygate/internal/logging"
)

// MinSessionSecretLength is the shortest accepted SESSION_SECRET.
const MinSessionSecretLength = 32

// Validate checks that required configuration is present and well formed.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateJellyfin,
		c.validateStorage,
		c.validateEventLog,
		c.validateCache,
		c.validateGeoIP,
		c.validateTrial,
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateJellyfin() error {
	if c.Jellyfin.URL == "" {
		return fmt.Errorf("JELLYFIN_URL is required")
	}
	if err := validateHTTPURL(c.Jellyfin.URL, "JELLYFIN_URL"); err != nil {
		return fmt.Errorf("JELLYFIN_URL is invalid: %w", err)
	}
	if c.Jellyfin.APIKey == "" {
		return fmt.Errorf("JELLYFIN_API_KEY is required")
	}
	if c.Jellyfin.Timeout <= 0 {
		return fmt.Errorf("JELLYFIN_TIMEOUT must be positive, got %v", c.Jellyfin.Timeout)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendMemory:
		return nil
	case StorageBackendBadger:
		if c.Storage.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required when STORAGE_BACKEND=badger")
		}
		return nil
	case StorageBackendSQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=sql")
		}
		switch c.Storage.ResolveSQLDriver() {
		case SQLDriverDuckDB, SQLDriverPostgres, SQLDriverSQLite:
			return nil
		default:
			return fmt.Errorf("STORAGE_SQL_DRIVER must be duckdb, postgres or sqlite, got: %s", c.Storage.SQLDriver)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory, sql or badger, got: %s", c.Storage.Backend)
	}
}

func (c *Config) validateEventLog() error {
	switch c.EventLog.Backend {
	case EventLogBackendFile, EventLogBackendBolt:
	default:
		return fmt.Errorf("EVENTLOG_BACKEND must be file or bolt, got: %s", c.EventLog.Backend)
	}
	if c.EventLog.Dir == "" {
		return fmt.Errorf("EVENTLOG_DIR is required")
	}
	if c.EventLog.AccessMax < 1 || c.EventLog.ActivityMax < 1 {
		return fmt.Errorf("event log limits must be at least 1 (access=%d, activity=%d)",
			c.EventLog.AccessMax, c.EventLog.ActivityMax)
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got: %s", c.Cache.Backend)
	}
	if c.Cache.UsersTTL < 0 || c.Cache.GeoTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}
	return nil
}

// knownGeoProviders are the public adapters that can appear in GEOIP_PROVIDERS.
var knownGeoProviders = map[string]bool{
	"ip-api":    true,
	"ipwho.is":  true,
	"freeipapi": true,
}

func (c *Config) validateGeoIP() error {
	if c.GeoIP.Timeout <= 0 {
		return fmt.Errorf("GEOIP_TIMEOUT must be positive, got %v", c.GeoIP.Timeout)
	}
	for _, p := range c.GeoIP.Providers {
		if !knownGeoProviders[p] {
			return fmt.Errorf("GEOIP_PROVIDERS contains unknown provider %q", p)
		}
	}
	if (c.GeoIP.MaxMindAccountID == "") != (c.GeoIP.MaxMindLicenseKey == "") {
		return fmt.Errorf("GEOIP_MAXMIND_ACCOUNT_ID and GEOIP_MAXMIND_LICENSE_KEY must be set together")
	}
	return nil
}

func (c *Config) validateTrial() error {
	if c.Trial.SweepInterval < time.Minute {
		return fmt.Errorf("TRIAL_SWEEP_INTERVAL must be at least 1m, got %v", c.Trial.SweepInterval)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateAdminCredentials(); err != nil {
		return err
	}
	if len(c.Security.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", MinSessionSecretLength)
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	switch c.Security.SessionStore {
	case "memory":
	case "badger":
		if c.Security.SessionStorePath == "" {
			return fmt.Errorf("SESSION_STORE_PATH is required when SESSION_STORE=badger")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or badger, got: %s", c.Security.SessionStore)
	}
	return c.validateRateLimits()
}

func (c *Config) validateAdminCredentials() error {
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("ADMIN_USERNAME is required")
	}
	if c.Security.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	result := AdminPasswordPolicy().Validate(c.Security.AdminPassword, c.Security.AdminUsername)
	if !result.Valid {
		if c.IsProduction() {
			return fmt.Errorf("ADMIN_PASSWORD does not meet policy: %s", strings.Join(result.Errors, "; "))
		}
		logging.Warn().Strs("problems", result.Errors).Msg("ADMIN_PASSWORD is weak; this is rejected when ENVIRONMENT=production")
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow < time.Second {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s, got %v", c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}
	return nil
}
