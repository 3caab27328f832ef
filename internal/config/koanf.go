// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/jellygate/config.yaml",
	"/etc/jellygate/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Jellyfin: JellyfinConfig{
			URL:              "",
			APIKey:           "",
			Timeout:          10 * time.Second,
			DisableDownloads: true,
			CircuitBreaker:   true,
		},
		Storage: StorageConfig{
			Backend:      StorageBackendSQL,
			SQLDriver:    "",
			DSN:          "/data/jellygate.duckdb",
			MaxOpenConns: 4,
			BadgerPath:   "/data/badger",
		},
		EventLog: EventLogConfig{
			Backend:     EventLogBackendFile,
			Dir:         "/data/logs",
			AccessMax:   1000,
			ActivityMax: 5000,
		},
		Cache: CacheConfig{
			Backend:  CacheBackendMemory,
			RedisURL: "",
			UsersTTL: 30 * time.Second,
			GeoTTL:   24 * time.Hour,
		},
		GeoIP: GeoIPConfig{
			Timeout:   5 * time.Second,
			Providers: []string{"ip-api", "ipwho.is", "freeipapi"},
		},
		Trial: TrialConfig{
			SweepInterval: time.Hour,
			SessionScan:   true,
		},
		Server: ServerConfig{
			Port:            8097,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			SessionTimeout:    24 * time.Hour,
			SessionStore:      "memory",
			SessionStorePath:  "/data/sessions",
			CookieName:        "jellygate_session",
			CookieSecure:      false,
			RateLimitReqs:     20,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration from three layers, each overriding the
// last: struct defaults, an optional YAML file, then environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"geoip.providers",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
// Unlisted variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"jellyfin_url":               "jellyfin.url",
	"jellyfin_api_key":           "jellyfin.api_key",
	"jellyfin_timeout":           "jellyfin.timeout",
	"jellyfin_disable_downloads": "jellyfin.disable_downloads",
	"jellyfin_circuit_breaker":   "jellyfin.circuit_breaker",

	"storage_backend":        "storage.backend",
	"storage_sql_driver":     "storage.sql_driver",
	"database_url":           "storage.dsn",
	"storage_max_open_conns": "storage.max_open_conns",
	"badger_path":            "storage.badger_path",

	"eventlog_backend":      "eventlog.backend",
	"eventlog_dir":          "eventlog.dir",
	"eventlog_access_max":   "eventlog.access_max",
	"eventlog_activity_max": "eventlog.activity_max",

	"cache_backend":   "cache.backend",
	"redis_url":       "cache.redis_url",
	"cache_users_ttl": "cache.users_ttl",
	"cache_geo_ttl":   "cache.geo_ttl",

	"geoip_timeout":             "geoip.timeout",
	"geoip_providers":           "geoip.providers",
	"geoip_maxmind_account_id":  "geoip.maxmind_account_id",
	"geoip_maxmind_license_key": "geoip.maxmind_license_key",

	"trial_sweep_interval": "trial.sweep_interval",
	"trial_session_scan":   "trial.session_scan",

	"http_port":        "server.port",
	"http_host":        "server.host",
	"server_timeout":   "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	"admin_username":      "security.admin_username",
	"admin_password":      "security.admin_password",
	"session_secret":      "security.session_secret",
	"session_timeout":     "security.session_timeout",
	"session_store":       "security.session_store",
	"session_store_path":  "security.session_store_path",
	"cookie_name":         "security.cookie_name",
	"cookie_secure":       "security.cookie_secure",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps JELLYFIN_URL to jellyfin.url and so on. Returning ""
// tells koanf to skip the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
