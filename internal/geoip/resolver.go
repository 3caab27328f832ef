// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package geoip

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/jellygate/internal/cache"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/metrics"
	"github.com/tomtom215/jellygate/internal/models"
)

// DefaultCacheTTL is how long a resolved location is reused.
const DefaultCacheTTL = 24 * time.Hour

// Resolver walks providers in order and caches the first usable answer.
type Resolver struct {
	providers []Provider
	cache     cache.Cacher
	ttl       time.Duration
}

// NewResolver creates a resolver. c may be nil to disable caching.
func NewResolver(c cache.Cacher, ttl time.Duration, providers ...Provider) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{providers: providers, cache: c, ttl: ttl}
}

// NewFromConfig builds the provider chain named in cfg. MaxMind goes first
// when credentials are configured.
func NewFromConfig(cfg config.GeoIPConfig, c cache.Cacher, ttl time.Duration) (*Resolver, error) {
	var providers []Provider
	if cfg.MaxMindAccountID != "" && cfg.MaxMindLicenseKey != "" {
		providers = append(providers, NewMaxMindProvider(cfg.MaxMindAccountID, cfg.MaxMindLicenseKey, cfg.Timeout))
	}
	for _, name := range cfg.Providers {
		p, err := providerByName(name, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return NewResolver(c, ttl, providers...), nil
}

func providerByName(name string, timeout time.Duration) (Provider, error) {
	switch name {
	case "ip-api", "ip-api.com":
		return NewIPAPIProvider(timeout), nil
	case "ipwho.is", "ipwho":
		return NewIPWhoProvider(timeout), nil
	case "freeipapi", "freeipapi.com":
		return NewFreeIPAPIProvider(timeout), nil
	default:
		return nil, fmt.Errorf("unknown geoip provider %q", name)
	}
}

// Providers returns the provider names in lookup order.
func (r *Resolver) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Lookup resolves ip. Private addresses resolve to LocalGeolocation without
// any outbound request. It reports false when the address is malformed or
// every provider failed; it never returns an error.
func (r *Resolver) Lookup(ctx context.Context, ip string) (*models.Geolocation, bool) {
	addr := NormalizeIP(ip)
	if addr == "" {
		return nil, false
	}

	if IsPrivateIP(addr) {
		metrics.RecordGeoLookup("local", "local")
		return LocalGeolocation(addr), true
	}

	key := "geo:" + addr
	if r.cache != nil {
		var cached models.Geolocation
		ok, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("ip", addr).Msg("Geo cache read failed")
		}
		if ok {
			metrics.RecordGeoLookup("cache", "hit")
			return &cached, true
		}
	}

	for _, p := range r.providers {
		if !p.IsAvailable() {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		geo, err := p.Lookup(ctx, addr)
		if err != nil {
			metrics.RecordGeoLookup(p.Name(), "error")
			logging.Ctx(ctx).Debug().Err(err).Str("provider", p.Name()).Str("ip", addr).Msg("GeoIP provider failed")
			continue
		}
		if !geo.WellFormed() {
			metrics.RecordGeoLookup(p.Name(), "empty")
			logging.Ctx(ctx).Debug().Str("provider", p.Name()).Str("ip", addr).Msg("GeoIP provider returned no country")
			continue
		}

		metrics.RecordGeoLookup(p.Name(), "success")
		if r.cache != nil {
			if err := r.cache.Set(ctx, key, geo, r.ttl); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("ip", addr).Msg("Failed to cache geolocation")
			}
		}
		return geo, true
	}

	logging.Ctx(ctx).Warn().Str("ip", addr).Msg("All GeoIP providers failed")
	return nil, false
}
