// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
)

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T, clk clock.Clock) SessionStore

func sessionStores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(_ *testing.T, clk clock.Clock) SessionStore {
			return NewMemorySessionStore(clk)
		},
		"badger": func(t *testing.T, clk clock.Clock) SessionStore {
			t.Helper()
			store, err := OpenBadgerSessionStore("", clk)
			if err != nil {
				t.Fatalf("OpenBadgerSessionStore() error = %v", err)
			}
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func TestSessionStores(t *testing.T) {
	t.Parallel()

	for name, factory := range sessionStores() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			t.Run("create and get", func(t *testing.T) {
				clk := clock.NewFake(t0)
				store := factory(t, clk)
				s := NewSession("admin", t0, time.Hour)
				if err := store.Create(ctx, s); err != nil {
					t.Fatalf("Create() error = %v", err)
				}
				got, err := store.Get(ctx, s.ID)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if got.Username != "admin" || !got.Admin || !got.ExpiresAt.Equal(t0.Add(time.Hour)) {
					t.Errorf("Get() = %+v", got)
				}
			})

			t.Run("missing", func(t *testing.T) {
				store := factory(t, clock.NewFake(t0))
				if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
					t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
				}
				if err := store.Delete(ctx, "nope"); err != nil {
					t.Errorf("Delete() of missing session error = %v", err)
				}
				if err := store.Touch(ctx, "nope", t0); !errors.Is(err, ErrSessionNotFound) {
					t.Errorf("Touch() error = %v, want ErrSessionNotFound", err)
				}
			})

			t.Run("expiry and touch", func(t *testing.T) {
				clk := clock.NewFake(t0)
				store := factory(t, clk)
				s := NewSession("admin", t0, time.Hour)
				if err := store.Create(ctx, s); err != nil {
					t.Fatal(err)
				}

				clk.Advance(50 * time.Minute)
				if err := store.Touch(ctx, s.ID, clk.Now().Add(time.Hour)); err != nil {
					t.Fatalf("Touch() error = %v", err)
				}

				clk.Advance(50 * time.Minute)
				got, err := store.Get(ctx, s.ID)
				if err != nil {
					t.Fatalf("touched session should be live: %v", err)
				}
				if !got.LastAccessedAt.Equal(t0.Add(50 * time.Minute)) {
					t.Errorf("LastAccessedAt = %v", got.LastAccessedAt)
				}

				clk.Advance(time.Hour)
				if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrSessionExpired) {
					t.Errorf("Get() error = %v, want ErrSessionExpired", err)
				}
			})

			t.Run("delete", func(t *testing.T) {
				store := factory(t, clock.NewFake(t0))
				s := NewSession("admin", t0, time.Hour)
				if err := store.Create(ctx, s); err != nil {
					t.Fatal(err)
				}
				if err := store.Delete(ctx, s.ID); err != nil {
					t.Fatal(err)
				}
				if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
					t.Errorf("Get() after Delete error = %v", err)
				}
			})

			t.Run("cleanup", func(t *testing.T) {
				clk := clock.NewFake(t0)
				store := factory(t, clk)
				short := NewSession("admin", t0, time.Minute)
				long := NewSession("admin", t0, time.Hour)
				for _, s := range []*Session{short, long} {
					if err := store.Create(ctx, s); err != nil {
						t.Fatal(err)
					}
				}

				clk.Advance(2 * time.Minute)
				n, err := store.CleanupExpired(ctx)
				if err != nil || n != 1 {
					t.Fatalf("CleanupExpired() = %d, %v; want 1", n, err)
				}
				if _, err := store.Get(ctx, short.ID); !errors.Is(err, ErrSessionNotFound) {
					t.Errorf("short session should be gone, err = %v", err)
				}
				if _, err := store.Get(ctx, long.ID); err != nil {
					t.Errorf("long session should survive: %v", err)
				}
			})
		})
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := NewSession("admin", t0, time.Hour)
		if len(s.ID) != 64 {
			t.Fatalf("len(ID) = %d, want 64", len(s.ID))
		}
		if seen[s.ID] {
			t.Fatal("duplicate session ID")
		}
		seen[s.ID] = true
	}
}

func TestMemorySessionStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemorySessionStore(clock.NewFake(t0))

	s := NewSession("admin", t0, time.Hour)
	if err := store.Create(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.Admin = false

	got, _ := store.Get(ctx, s.ID)
	got.Username = "mutated"

	again, _ := store.Get(ctx, s.ID)
	if !again.Admin || again.Username != "admin" {
		t.Errorf("stored session was mutated: %+v", again)
	}
}

func TestRunCleanup_StopsOnCancel(t *testing.T) {
	t.Parallel()

	store := NewMemorySessionStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunCleanup(ctx, store, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunCleanup() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not stop")
	}
}
