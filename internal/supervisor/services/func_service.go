// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package services

import (
	"context"
	"time"
)

// Func is a named suture.Service around a function that runs until ctx
// is canceled, such as auth.RunCleanup.
type Func struct {
	name string
	run  func(ctx context.Context) error
}

// NewFunc names run for supervisor logs.
func NewFunc(name string, run func(ctx context.Context) error) *Func {
	return &Func{name: name, run: run}
}

// Serve implements suture.Service.
func (f *Func) Serve(ctx context.Context) error {
	return f.run(ctx)
}

func (f *Func) String() string {
	return f.name
}

// Periodic calls tick every interval until its context is canceled. The
// first call happens one interval after start.
type Periodic struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
}

// NewPeriodic creates a periodic service. interval must be positive.
func NewPeriodic(name string, interval time.Duration, tick func(ctx context.Context)) *Periodic {
	return &Periodic{name: name, interval: interval, tick: tick}
}

// Serve implements suture.Service.
func (p *Periodic) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Periodic) String() string {
	return p.name
}
