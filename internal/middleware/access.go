// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/eventlog"
	"github.com/tomtom215/jellygate/internal/models"
)

// Locator resolves an IP to a location. *geoip.Resolver implements it.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*models.Geolocation, bool)
}

// AccessRecorder appends one access-log entry per page view. The geo
// lookup can take seconds, so entries are submitted after the response and
// written in the background, in request order.
type AccessRecorder struct {
	logs  *eventlog.Logs
	geo   Locator
	clock clock.Clock
}

// NewAccessRecorder creates a recorder. geo may be nil.
func NewAccessRecorder(logs *eventlog.Logs, geo Locator, clk clock.Clock) *AccessRecorder {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AccessRecorder{logs: logs, geo: geo, clock: clk}
}

// Middleware records GET requests that reach the wrapped handler.
func (a *AccessRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		if r.Method != http.MethodGet || a.logs == nil {
			return
		}
		entry := models.LogEntry{
			Timestamp: a.clock.Now(),
			IP:        remoteIP(r),
			Path:      r.URL.Path,
			UserAgent: r.UserAgent(),
		}
		a.logs.SubmitAccess(context.WithoutCancel(r.Context()), entry, GeoEnricher(a.geo))
	})
}

// Wait blocks until pending entries are written. Used at shutdown and in
// tests.
func (a *AccessRecorder) Wait() {
	if a.logs != nil {
		a.logs.Wait()
	}
}

// GeoEnricher fills an entry's location from geo. It returns nil when geo
// is nil.
func GeoEnricher(geo Locator) eventlog.Enricher {
	if geo == nil {
		return nil
	}
	return func(ctx context.Context, entry *models.LogEntry) {
		if entry.IP == "" {
			return
		}
		if g, ok := geo.Lookup(ctx, entry.IP); ok {
			entry.ApplyGeo(g)
		}
	}
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
