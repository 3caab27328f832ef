// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/eventlog"
	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/storage"
)

const testAPIKey = "test-api-key"

// testConfig uses the lock-holding backends (badger storage, bbolt event
// logs) so a missed Close shows up as a failed reopen.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	upstream := jellyfin.NewMockServer(testAPIKey)
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	return &config.Config{
		Jellyfin: config.JellyfinConfig{URL: upstream.URL(), APIKey: testAPIKey, Timeout: time.Second},
		Storage:  config.StorageConfig{Backend: config.StorageBackendBadger, BadgerPath: filepath.Join(dir, "badger")},
		EventLog: config.EventLogConfig{Backend: config.EventLogBackendBolt, Dir: filepath.Join(dir, "logs")},
		Cache:    config.CacheConfig{Backend: config.CacheBackendMemory, UsersTTL: time.Second, GeoTTL: time.Minute},
		GeoIP:    config.GeoIPConfig{Timeout: time.Second},
		Trial:    config.TrialConfig{SweepInterval: time.Hour},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			Timeout:         5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Security: config.SecurityConfig{
			AdminUsername:     "admin",
			AdminPassword:     "correct-horse-battery-9",
			SessionSecret:     "0123456789abcdef0123456789abcdef",
			SessionTimeout:    time.Hour,
			SessionStore:      "memory",
			RateLimitDisabled: true,
		},
	}
}

// assertReleased reopens the lock-holding stores; both fail while another
// handle is still open.
func assertReleased(t *testing.T, cfg *config.Config) {
	t.Helper()

	repo, err := storage.OpenBadger(cfg.Storage.BadgerPath, nil)
	if err != nil {
		t.Fatalf("storage still held after run returned: %v", err)
	}
	_ = repo.Close()

	db, err := eventlog.OpenBolt(filepath.Join(cfg.EventLog.Dir, "eventlog.db"))
	if err != nil {
		t.Fatalf("event log still held after run returned: %v", err)
	}
	_ = db.Close()
}

func TestRun_ClosesComponentsOnShutdown(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, cfg, clock.Real{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	assertReleased(t, cfg)
}

func TestRun_ClosesComponentsOnInitFailure(t *testing.T) {
	cfg := testConfig(t)
	// Storage and event logs open first; the cache then fails.
	cfg.Cache.Backend = "memcached"

	if err := run(context.Background(), cfg, clock.Real{}); err == nil {
		t.Fatal("run() should fail for an unknown cache backend")
	}
	assertReleased(t, cfg)
}
