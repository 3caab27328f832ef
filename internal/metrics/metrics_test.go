// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/admin/users", "200"))
	RecordAPIRequest("GET", "/api/admin/users", "200", 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/admin/users", "200"))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("create_user", "error"))
	RecordUpstreamRequest("create_user", time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("create_user", "error")); got-before != 1 {
		t.Errorf("expected error outcome to increase by 1, got %v", got-before)
	}
}

func TestRecordSweep(t *testing.T) {
	processed := testutil.ToFloat64(SweepRecordsTotal.WithLabelValues("disable", "processed"))
	failed := testutil.ToFloat64(SweepRecordsTotal.WithLabelValues("disable", "failed"))

	RecordSweep("manual", "disable", 10*time.Millisecond, 3, 1)

	if got := testutil.ToFloat64(SweepRecordsTotal.WithLabelValues("disable", "processed")); got-processed != 3 {
		t.Errorf("processed delta = %v, want 3", got-processed)
	}
	if got := testutil.ToFloat64(SweepRecordsTotal.WithLabelValues("disable", "failed")); got-failed != 1 {
		t.Errorf("failed delta = %v, want 1", got-failed)
	}
	if testutil.ToFloat64(SweepLastSuccess) == 0 {
		t.Error("expected last success timestamp to be set")
	}
}

func TestRecordCacheAccess(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("memory"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("memory"))

	RecordCacheAccess("memory", true)
	RecordCacheAccess("memory", false)
	RecordCacheAccess("memory", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("memory")) - hits; got != 1 {
		t.Errorf("hits delta = %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("memory")) - misses; got != 2 {
		t.Errorf("misses delta = %v", got)
	}
}
