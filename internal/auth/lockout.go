// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"sync"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/logging"
)

// LockoutConfig holds configuration for failed-login lockout.
type LockoutConfig struct {
	// MaxAttempts is the number of failed attempts before lockout.
	MaxAttempts int

	// Duration is the base lockout period. It doubles on each repeat
	// lockout up to MaxDuration.
	Duration    time.Duration
	MaxDuration time.Duration
}

// DefaultLockoutConfig returns sensible defaults.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts: 5,
		Duration:    15 * time.Minute,
		MaxDuration: 24 * time.Hour,
	}
}

type lockoutEntry struct {
	failedAttempts int
	lockoutCount   int
	lastAttempt    time.Time
	lockedUntil    time.Time
}

// Lockout tracks failed admin logins per subject, normally the client IP.
// It complements the per-IP request rate limit: the rate limit bounds
// request volume while Lockout bounds password guesses.
type Lockout struct {
	mu      sync.Mutex
	cfg     LockoutConfig
	clock   clock.Clock
	entries map[string]*lockoutEntry
}

// NewLockout creates a lockout tracker.
func NewLockout(cfg LockoutConfig, clk clock.Clock) *Lockout {
	def := DefaultLockoutConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	if cfg.MaxDuration < cfg.Duration {
		cfg.MaxDuration = def.MaxDuration
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Lockout{cfg: cfg, clock: clk, entries: make(map[string]*lockoutEntry)}
}

// Check reports whether subject is locked and for how much longer.
func (l *Lockout) Check(subject string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[subject]
	if !ok {
		return false, 0
	}
	now := l.clock.Now()
	if now.Before(e.lockedUntil) {
		return true, e.lockedUntil.Sub(now)
	}
	return false, 0
}

// Fail records a failed attempt and reports whether subject is now locked.
func (l *Lockout) Fail(subject string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	e, ok := l.entries[subject]
	if !ok {
		e = &lockoutEntry{}
		l.entries[subject] = e
	}
	if now.Before(e.lockedUntil) {
		return true, e.lockedUntil.Sub(now)
	}

	e.failedAttempts++
	e.lastAttempt = now
	if e.failedAttempts < l.cfg.MaxAttempts {
		return false, 0
	}

	d := l.duration(e.lockoutCount)
	e.lockedUntil = now.Add(d)
	e.lockoutCount++
	e.failedAttempts = 0

	logging.Warn().
		Str("subject", subject).
		Dur("duration", d).
		Int("lockout_count", e.lockoutCount).
		Msg("Admin login locked")
	return true, d
}

// Succeed clears the subject's history.
func (l *Lockout) Succeed(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, subject)
}

// Cleanup drops unlocked entries idle for longer than MaxDuration.
func (l *Lockout) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	threshold := now.Add(-l.cfg.MaxDuration)
	count := 0
	for subject, e := range l.entries {
		if !now.Before(e.lockedUntil) && e.lastAttempt.Before(threshold) {
			delete(l.entries, subject)
			count++
		}
	}
	return count
}

func (l *Lockout) duration(lockoutCount int) time.Duration {
	d := l.cfg.Duration
	for i := 0; i < lockoutCount && d < l.cfg.MaxDuration; i++ {
		d *= 2
	}
	if d > l.cfg.MaxDuration {
		d = l.cfg.MaxDuration
	}
	return d
}
