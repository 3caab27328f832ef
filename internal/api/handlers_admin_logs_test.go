// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import (
	"net/http"
	"testing"

	"github.com/tomtom215/jellygate/internal/models"
)

func TestAnalytics_CountsPageViews(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		if rec := h.do(http.MethodGet, "/", nil); rec.Code != http.StatusOK {
			t.Fatalf("GET / status = %d", rec.Code)
		}
	}
	h.do(http.MethodGet, "/static/style.css", nil)
	h.flush()

	cookie := h.login()
	var resp AnalyticsResponse
	decodeData(t, h.do(http.MethodGet, "/api/admin/analytics", nil, cookie), &resp)

	if resp.Visits.TotalVisits != 2 || resp.Visits.UniqueIPs != 1 || resp.Visits.Last24Hours != 2 {
		t.Errorf("visits = %+v", resp.Visits)
	}
	if len(resp.Visits.TopPaths) != 1 || resp.Visits.TopPaths[0].Name != "/" {
		t.Errorf("top paths = %+v", resp.Visits.TopPaths)
	}
}

func TestAccessLogs_Limit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.do(http.MethodGet, "/", nil)
	h.do(http.MethodGet, "/admin", nil)
	h.flush()
	cookie := h.login()

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?limit=1", 1},
		{"?limit=abc", 2},
		{"?limit=-5", 2},
	}
	for _, tt := range tests {
		rec := h.do(http.MethodGet, "/api/admin/access-logs"+tt.query, nil, cookie)
		var entries []models.LogEntry
		decodeData(t, rec, &entries)
		if len(entries) != tt.want {
			t.Errorf("%q: got %d entries, want %d", tt.query, len(entries), tt.want)
		}
	}

	rec := h.do(http.MethodGet, "/api/admin/access-logs?limit=1", nil, cookie)
	var entries []models.LogEntry
	decodeData(t, rec, &entries)
	if entries[0].Path != "/admin" {
		t.Errorf("newest entry path = %q, want /admin", entries[0].Path)
	}
}

func TestActivityLogs_RecordsSignup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.signup("paula")
	h.flush()
	cookie := h.login()
	h.flush()

	var entries []models.LogEntry
	decodeData(t, h.do(http.MethodGet, "/api/admin/activity-logs", nil, cookie), &entries)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[1].Activity != models.ActivitySignup || entries[1].Username != "paula" {
		t.Errorf("oldest entry = %+v", entries[1])
	}
}

func TestPageViews_UnflushedWritesDrainBeforeCleanup(t *testing.T) {
	t.Parallel()

	// The subtest never flushes. Its TempDir removal fails if a log write is
	// still in flight.
	ok := t.Run("unflushed", func(t *testing.T) {
		h := newHarness(t)
		for i := 0; i < 20; i++ {
			h.do(http.MethodGet, "/", nil)
		}
		lat, lon := 64.1, -21.9
		h.do(http.MethodPost, "/api/update-client-location", LocationRequest{Latitude: &lat, Longitude: &lon})
	})
	if !ok {
		t.Fatal("harness cleanup raced pending log writes")
	}
}
