// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

// Package eventlog stores the bounded access and activity logs shown on the
// admin dashboard.
//
// Two backends exist. FileSink keeps each log as one JSON array file and
// rewrites it on every append. BoltSink keeps entries in a bbolt bucket keyed
// by sequence number. Both keep only the newest max entries.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/metrics"
	"github.com/tomtom215/jellygate/internal/models"
)

// Default retention.
const (
	DefaultAccessMax   = 1000
	DefaultActivityMax = 5000
)

// Log names, used for files, buckets and metrics.
const (
	AccessLog   = "access"
	ActivityLog = "activity"
)

// Sink is an append-only bounded log.
type Sink interface {
	Append(ctx context.Context, entry models.LogEntry) error

	// Recent returns up to n entries, newest first. n <= 0 returns all.
	Recent(ctx context.Context, n int) ([]models.LogEntry, error)
}

// Logs pairs the access and activity sinks.
//
// Both sinks trim and read by position, so entries must reach a sink in the
// order they were submitted. Every submission waits for its predecessor on
// the same log before appending; enrichment (the geo lookup) still runs
// concurrently.
type Logs struct {
	Access   Sink
	Activity Sink

	closers []func() error

	mu      sync.Mutex
	tails   map[string]chan struct{}
	pending sync.WaitGroup
}

// Enricher completes an entry before it is written, typically with a geo
// lookup. It runs off the request path.
type Enricher func(ctx context.Context, entry *models.LogEntry)

// NewLogs wraps existing sinks. Used by tests and by Open.
func NewLogs(access, activity Sink) *Logs {
	return &Logs{Access: access, Activity: activity}
}

// Open builds both logs from configuration.
func Open(cfg config.EventLogConfig) (*Logs, error) {
	accessMax := cfg.AccessMax
	if accessMax <= 0 {
		accessMax = DefaultAccessMax
	}
	activityMax := cfg.ActivityMax
	if activityMax <= 0 {
		activityMax = DefaultActivityMax
	}

	switch cfg.Backend {
	case "", config.EventLogBackendFile:
		return NewLogs(
			NewFileSink(filepath.Join(cfg.Dir, AccessLog+"_logs.json"), accessMax),
			NewFileSink(filepath.Join(cfg.Dir, ActivityLog+"_logs.json"), activityMax),
		), nil

	case config.EventLogBackendBolt:
		db, err := OpenBolt(filepath.Join(cfg.Dir, "eventlog.db"))
		if err != nil {
			return nil, err
		}
		access, err := NewBoltSink(db, AccessLog, accessMax)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		activity, err := NewBoltSink(db, ActivityLog, activityMax)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logs := NewLogs(access, activity)
		logs.closers = append(logs.closers, db.Close)
		return logs, nil

	default:
		return nil, fmt.Errorf("unknown eventlog backend %q", cfg.Backend)
	}
}

// RecordAccess appends to the access log and returns once the entry, and
// every entry submitted before it, is written. Failures are logged, not
// returned: a broken log must never fail the request being logged.
func (l *Logs) RecordAccess(ctx context.Context, entry models.LogEntry) {
	<-l.submit(ctx, AccessLog, l.Access, entry, nil)
}

// RecordActivity is RecordAccess for the activity log.
func (l *Logs) RecordActivity(ctx context.Context, entry models.LogEntry) {
	<-l.submit(ctx, ActivityLog, l.Activity, entry, nil)
}

// SubmitAccess queues entry for the access log and returns immediately.
// enrich may be nil. ctx should outlive the request; callers pass
// context.WithoutCancel.
func (l *Logs) SubmitAccess(ctx context.Context, entry models.LogEntry, enrich Enricher) {
	l.submit(ctx, AccessLog, l.Access, entry, enrich)
}

// SubmitActivity queues entry for the activity log and returns immediately.
func (l *Logs) SubmitActivity(ctx context.Context, entry models.LogEntry, enrich Enricher) {
	l.submit(ctx, ActivityLog, l.Activity, entry, enrich)
}

// Wait blocks until every submitted entry has been written.
func (l *Logs) Wait() {
	l.pending.Wait()
}

// submit chains the entry behind the previous submission to the same log
// and returns a channel closed once it has been written.
func (l *Logs) submit(ctx context.Context, name string, sink Sink, entry models.LogEntry, enrich Enricher) <-chan struct{} {
	done := make(chan struct{})
	if sink == nil {
		close(done)
		return done
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	if l.tails == nil {
		l.tails = make(map[string]chan struct{})
	}
	prev := l.tails[name]
	l.tails[name] = done
	l.pending.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.pending.Done()
		defer close(done)

		if enrich != nil {
			enrich(ctx, &entry)
		}
		if prev != nil {
			<-prev
		}
		l.write(ctx, name, sink, entry)
	}()
	return done
}

func (l *Logs) write(ctx context.Context, name string, sink Sink, entry models.LogEntry) {
	err := sink.Append(ctx, entry)
	metrics.RecordEventLogAppend(name, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("log", name).Msg("Failed to append log entry")
	}
}

// Close releases backend resources.
func (l *Logs) Close() error {
	var errs []error
	for _, c := range l.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newestFirst returns up to n entries of an oldest-first slice in reverse.
func newestFirst(entries []models.LogEntry, n int) []models.LogEntry {
	if n <= 0 || n > len(entries) {
		n = len(entries)
	}
	out := make([]models.LogEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out
}
