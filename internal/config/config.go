// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config file: optional YAML (config.yaml, or CONFIG_PATH)
//  3. Environment variables: override anything, see envTransformFunc
//
// Required settings: JELLYFIN_URL, JELLYFIN_API_KEY, ADMIN_USERNAME,
// ADMIN_PASSWORD and SESSION_SECRET.
type Config struct {
	Jellyfin JellyfinConfig `koanf:"jellyfin"`
	Storage  StorageConfig  `koanf:"storage"`
	EventLog EventLogConfig `koanf:"eventlog"`
	Cache    CacheConfig    `koanf:"cache"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Trial    TrialConfig    `koanf:"trial"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// JellyfinConfig holds the upstream media server connection.
type JellyfinConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// DisableDownloads turns off content downloading on new accounts.
	DisableDownloads bool `koanf:"disable_downloads"`

	// CircuitBreaker toggles the gobreaker wrapper around the client.
	CircuitBreaker bool `koanf:"circuit_breaker"`
}

// Storage backends.
const (
	StorageBackendMemory = "memory"
	StorageBackendSQL    = "sql"
	StorageBackendBadger = "badger"
)

// SQL drivers.
const (
	SQLDriverDuckDB   = "duckdb"
	SQLDriverPostgres = "postgres"
	SQLDriverSQLite   = "sqlite"
)

// StorageConfig selects and configures the trial repository backend.
type StorageConfig struct {
	// Backend is memory, sql or badger.
	Backend string `koanf:"backend"`

	// SQLDriver is duckdb, postgres or sqlite. Empty means infer from DSN.
	SQLDriver string `koanf:"sql_driver"`

	// DSN is the database connection string (DATABASE_URL).
	DSN string `koanf:"dsn"`

	MaxOpenConns int `koanf:"max_open_conns"`

	// BadgerPath is the directory for the document store.
	BadgerPath string `koanf:"badger_path"`
}

// ResolveSQLDriver returns the configured driver or infers one from the DSN.
func (s StorageConfig) ResolveSQLDriver() string {
	if s.SQLDriver != "" {
		return strings.ToLower(s.SQLDriver)
	}
	dsn := strings.ToLower(s.DSN)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return SQLDriverPostgres
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"),
		strings.HasSuffix(dsn, ".sqlite"), strings.HasSuffix(dsn, ".sqlite3"):
		return SQLDriverSQLite
	default:
		return SQLDriverDuckDB
	}
}

// Event log backends.
const (
	EventLogBackendFile = "file"
	EventLogBackendBolt = "bolt"
)

// EventLogConfig configures the access and activity logs.
type EventLogConfig struct {
	Backend     string `koanf:"backend"`
	Dir         string `koanf:"dir"`
	AccessMax   int    `koanf:"access_max"`
	ActivityMax int    `koanf:"activity_max"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig configures the TTL cache shared by the geo resolver and the
// admin user listing.
type CacheConfig struct {
	Backend  string        `koanf:"backend"`
	RedisURL string        `koanf:"redis_url"`
	UsersTTL time.Duration `koanf:"users_ttl"`
	GeoTTL   time.Duration `koanf:"geo_ttl"`
}

// GeoIPConfig configures the geo-lookup fallback chain.
type GeoIPConfig struct {
	Timeout time.Duration `koanf:"timeout"`

	// Providers lists the public adapters in fallback order.
	Providers []string `koanf:"providers"`

	// MaxMind GeoLite web service credentials. When both are set MaxMind is
	// tried first.
	MaxMindAccountID  string `koanf:"maxmind_account_id"`
	MaxMindLicenseKey string `koanf:"maxmind_license_key"`
}

// TrialConfig configures the background sweep.
type TrialConfig struct {
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// SessionScan records active upstream sessions in the activity log on
	// every sweep tick.
	SessionScan bool `koanf:"session_scan"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds admin authentication, session and rate limit settings.
type SecurityConfig struct {
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// SessionSecret signs the session cookie. At least 32 characters.
	SessionSecret  string        `koanf:"session_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// SessionStore is memory or badger.
	SessionStore     string `koanf:"session_store"`
	SessionStorePath string `koanf:"session_store_path"`
	CookieName       string `koanf:"cookie_name"`
	CookieSecure     bool   `koanf:"cookie_secure"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
