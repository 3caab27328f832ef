// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFunc(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	svc := NewFunc("session-cleanup", func(context.Context) error { return boom })

	if svc.String() != "session-cleanup" {
		t.Errorf("String() = %q", svc.String())
	}
	if err := svc.Serve(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Serve err = %v", err)
	}
}

func TestPeriodic(t *testing.T) {
	t.Parallel()

	var ticks atomic.Int32
	svc := NewPeriodic("lockout-cleanup", 10*time.Millisecond, func(context.Context) { ticks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve err = %v", err)
	}
	if ticks.Load() < 3 {
		t.Errorf("ticks = %d, want at least 3", ticks.Load())
	}
	if svc.String() != "lockout-cleanup" {
		t.Errorf("String() = %q", svc.String())
	}
}
