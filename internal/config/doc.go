// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package config loads and validates Jellygate's configuration.

Configuration is layered with Koanf v2: struct defaults, then an optional
YAML file (CONFIG_PATH, config.yaml, /etc/jellygate/config.yaml), then
environment variables. Environment names are mapped explicitly by
envTransformFunc; anything not in the table is ignored.

Commonly set variables:

	JELLYFIN_URL, JELLYFIN_API_KEY        upstream server and API key
	ADMIN_USERNAME, ADMIN_PASSWORD        admin panel credentials
	SESSION_SECRET                        cookie signing key (32+ chars)
	STORAGE_BACKEND                       memory | sql | badger
	DATABASE_URL                          SQL DSN (duckdb path, postgres:// URL, or sqlite file)
	EVENTLOG_BACKEND, EVENTLOG_DIR        file | bolt, and where logs live
	CACHE_BACKEND, REDIS_URL              memory | redis
	TRIAL_SWEEP_INTERVAL                  how often the expiry sweep runs

The package also owns the password policies used for signup validation and
for checking ADMIN_PASSWORD.
*/
package config
