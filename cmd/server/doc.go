// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package main is the entry point for the Jellygate server.

Jellygate puts a public signup page in front of a Jellyfin server. Visitors
create their own Jellyfin account; when trial mode is on the account is
time-limited and a background sweeper disables or deletes it once the trial
lapses. An admin dashboard lists users, edits trial settings and shows visit
analytics.

# Application Architecture

	RootSupervisor ("jellygate")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── trial-sweeper
	│   ├── session-cleanup
	│   └── lockout-cleanup
	└── APISupervisor ("api-layer")
	    └── http-server

Initialization order:

 1. Configuration: Koanf v2 with defaults, optional config.yaml, environment
 2. Logging: zerolog, reconfigured from LOG_LEVEL and LOG_FORMAT
 3. Storage: memory, SQL (DuckDB, PostgreSQL, SQLite) or Badger
 4. Event logs: JSON files or bbolt
 5. Cache and GeoIP resolver
 6. Jellyfin client, optionally behind a circuit breaker
 7. Admin authentication and sessions
 8. Supervisor tree and HTTP server

# Configuration

Required:
  - JELLYFIN_URL, JELLYFIN_API_KEY
  - ADMIN_USERNAME, ADMIN_PASSWORD (12+ characters with a digit)
  - SESSION_SECRET (32+ characters)

Common options:
  - HTTP_PORT (default 8097), HTTP_HOST
  - STORAGE_BACKEND=memory|sql|badger, DATABASE_URL, BADGER_PATH
  - EVENTLOG_BACKEND=file|bolt, EVENTLOG_DIR
  - CACHE_BACKEND=memory|redis, REDIS_URL
  - TRIAL_SWEEP_INTERVAL (default 1h), TRIAL_SESSION_SCAN
  - GEOIP_PROVIDERS (comma separated: ip-api, ipwho.is, freeipapi)

Example:

	export JELLYFIN_URL=http://jellyfin:8096
	export JELLYFIN_API_KEY=...
	export ADMIN_USERNAME=owner
	export ADMIN_PASSWORD='a-long-passphrase-1'
	export SESSION_SECRET=$(openssl rand -hex 32)
	export STORAGE_BACKEND=sql DATABASE_URL=/data/jellygate.db
	./jellygate

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
up to SHUTDOWN_TIMEOUT, pending log writes are flushed, then storage is
closed.
*/
package main
