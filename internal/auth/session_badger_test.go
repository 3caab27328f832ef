// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
)

func TestBadgerSessionStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "sessions")

	store, err := OpenBadgerSessionStore(dir, clock.NewFake(t0))
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession("admin", t0, time.Hour)
	if err := store.Create(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenBadgerSessionStore(dir, clock.NewFake(t0.Add(time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, s.ID); err != nil {
		t.Errorf("session lost across reopen: %v", err)
	}
}

func TestNewSessionStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.SecurityConfig
		want    string
		wantErr bool
	}{
		{"default", config.SecurityConfig{}, "memory", false},
		{"memory", config.SecurityConfig{SessionStore: SessionStoreMemory}, "memory", false},
		{"badger", config.SecurityConfig{SessionStore: SessionStoreBadger, SessionStorePath: ""}, "badger", false},
		{"unknown", config.SecurityConfig{SessionStore: "etcd"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, closeFn, err := NewSessionStore(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer closeFn()

			switch store.(type) {
			case *MemorySessionStore:
				if tt.want != "memory" {
					t.Errorf("got memory store, want %s", tt.want)
				}
			case *BadgerSessionStore:
				if tt.want != "badger" {
					t.Errorf("got badger store, want %s", tt.want)
				}
			}
		})
	}
}
