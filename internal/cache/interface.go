// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

// Package cache provides explicit TTL caches owned by the components that
// use them. Values are stored JSON-encoded so the in-memory and Redis
// backends behave identically: callers always get a fresh copy.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
)

// Cacher is implemented by Cache (in-memory) and RedisCache.
type Cacher interface {
	// Get decodes the value stored under key into dest. It reports false
	// when the key is missing or expired.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value under key for ttl. A ttl <= 0 uses the default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	Close() error
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects a backend.
type Config struct {
	Backend    string
	DefaultTTL time.Duration

	// MaxEntries bounds the in-memory backend. Zero means 10000.
	MaxEntries int

	RedisURL string

	// Prefix namespaces Redis keys so several caches can share one database.
	Prefix string
}

// New builds the configured backend. clk is only used by the in-memory
// backend; Redis expires keys server-side.
func New(ctx context.Context, cfg Config, clk clock.Clock) (Cacher, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.DefaultTTL, cfg.MaxEntries, clk), nil
	case BackendRedis:
		c, err := NewRedis(ctx, cfg.RedisURL, cfg.Prefix, cfg.DefaultTTL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. Cache errors are treated as misses.
func GetOrLoad[T any](ctx context.Context, c Cacher, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

var (
	_ Cacher = (*Cache)(nil)
	_ Cacher = (*RedisCache)(nil)
)
