// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package trial

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/eventlog"
	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/metrics"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
)

// DefaultSweepInterval is used when Config.Interval is zero.
const DefaultSweepInterval = time.Hour

// Sweep triggers, used as a metrics label.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Summary reports one sweep. Skipped counts records returned by the
// permissive read that had already been handled.
type Summary struct {
	Action    models.ExpiryAction `json:"action"`
	Processed int                 `json:"processed"`
	Failed    int                 `json:"failed"`
	Skipped   int                 `json:"skipped"`
}

// Locator resolves client IPs for session entries. *geoip.Resolver
// implements it.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*models.Geolocation, bool)
}

// Config configures a Sweeper.
type Config struct {
	Interval time.Duration

	// SessionScan records upstream sessions in the activity log on each tick.
	SessionScan bool
}

// Sweeper applies the expiry action to lapsed trials.
type Sweeper struct {
	repo    storage.Repository
	client  jellyfin.ClientInterface
	logs    *eventlog.Logs
	geo     Locator
	clock   clock.Clock
	cfg     Config
	sweepMu sync.Mutex

	scanMu   sync.Mutex
	lastScan time.Time
}

// NewSweeper creates a sweeper. logs and geo may be nil.
func NewSweeper(repo storage.Repository, client jellyfin.ClientInterface, logs *eventlog.Logs, geo Locator, clk clock.Clock, cfg Config) *Sweeper {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	return &Sweeper{repo: repo, client: client, logs: logs, geo: geo, clock: clk, cfg: cfg}
}

// Interval returns the tick interval.
func (s *Sweeper) Interval() time.Duration { return s.cfg.Interval }

// Sweep runs one expiry pass on demand.
func (s *Sweeper) Sweep(ctx context.Context) (Summary, error) {
	return s.sweep(ctx, TriggerManual)
}

func (s *Sweeper) sweep(ctx context.Context, trigger string) (Summary, error) {
	// Overlapping passes would both see a record as unprocessed.
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)

	settings, err := s.repo.GetTrialSettings(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read trial settings: %w", err)
	}
	summary := Summary{Action: ActionFor(settings)}

	now := s.clock.Now()
	candidates, err := s.repo.GetExpiredTrialUsers(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("read expired trials: %w", err)
	}

	for i := range candidates {
		r := &candidates[i]
		if r.IsExpired || !IsExpired(r, now) {
			summary.Skipped++
			continue
		}
		if err := s.expire(ctx, r, summary.Action); err != nil {
			summary.Failed++
			log.Warn().Err(err).Str("username", r.Username).Str("action", string(summary.Action)).
				Msg("Failed to expire trial user")
			continue
		}
		summary.Processed++
		s.recordExpiry(ctx, r, summary.Action, now)
	}

	metrics.RecordSweep(trigger, string(summary.Action), time.Since(start), summary.Processed, summary.Failed)
	if summary.Processed > 0 || summary.Failed > 0 {
		log.Info().Str("trigger", trigger).Str("action", string(summary.Action)).
			Int("processed", summary.Processed).Int("failed", summary.Failed).Int("skipped", summary.Skipped).
			Msg("Trial sweep completed")
	}
	return summary, nil
}

// expire acts upstream first and only then records the outcome locally, so a
// failed upstream call leaves the record eligible for the next pass.
func (s *Sweeper) expire(ctx context.Context, r *models.TrialUser, action models.ExpiryAction) error {
	user, err := s.client.FindUserByName(ctx, r.Username)
	gone := jellyfin.IsNotFound(err)
	if err != nil && !gone {
		return err
	}

	switch action {
	case models.ExpiryActionDelete:
		if !gone {
			if err := s.client.DeleteUser(ctx, user.ID); err != nil && !jellyfin.IsNotFound(err) {
				return err
			}
		}
		if err := s.repo.DeleteTrialUser(ctx, r.Username); err != nil {
			return err
		}
		if err := s.repo.DeleteUserAccount(ctx, r.Username); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("username", r.Username).Msg("Failed to remove local account record")
		}
		return nil

	default:
		if gone {
			logging.Ctx(ctx).Info().Str("username", r.Username).Msg("Trial user no longer exists upstream, marking expired")
		} else if err := s.client.SetDisabled(ctx, user.ID, true); err != nil {
			return err
		}
		return s.repo.MarkTrialUserExpired(ctx, r.Username)
	}
}

func (s *Sweeper) recordExpiry(ctx context.Context, r *models.TrialUser, action models.ExpiryAction, now time.Time) {
	if s.logs == nil {
		return
	}
	s.logs.RecordActivity(ctx, models.LogEntry{
		Timestamp: now,
		Username:  r.Username,
		Activity:  models.ActivityTrialExpired,
		Detail:    string(action),
	})
}

// ScanSessions records upstream sessions active since the previous scan in
// the activity log and returns how many were recorded.
func (s *Sweeper) ScanSessions(ctx context.Context) (int, error) {
	sessions, err := s.client.GetSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	s.scanMu.Lock()
	since := s.lastScan
	s.lastScan = s.clock.Now()
	s.scanMu.Unlock()

	if s.logs == nil {
		return 0, nil
	}

	recorded := 0
	for i := range sessions {
		sess := &sessions[i]
		if sess.UserName == "" || (!since.IsZero() && !sess.LastActivityDate.After(since)) {
			continue
		}
		entry := models.LogEntry{
			Timestamp: sess.LastActivityDate.UTC(),
			IP:        sess.IP(),
			Username:  sess.UserName,
			Activity:  models.ActivitySession,
			UserAgent: sess.Client,
			Detail:    sess.DeviceName,
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = s.clock.Now()
		}
		if s.geo != nil && entry.IP != "" {
			if g, ok := s.geo.Lookup(ctx, entry.IP); ok {
				entry.ApplyGeo(g)
			}
		}
		s.logs.RecordActivity(ctx, entry)
		recorded++
	}
	return recorded, nil
}

// Tick runs one scheduled pass: the session scan, then the sweep when trial
// mode is enabled. Errors are logged.
func (s *Sweeper) Tick(ctx context.Context) {
	if s.cfg.SessionScan {
		if _, err := s.ScanSessions(ctx); err != nil {
			logging.Warn().Err(err).Msg("Session scan failed")
		}
	}

	settings, err := s.repo.GetTrialSettings(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Trial sweep skipped: settings unavailable")
		return
	}
	if !settings.Enabled {
		return
	}
	if _, err := s.sweep(ctx, TriggerScheduled); err != nil {
		logging.Warn().Err(err).Msg("Trial sweep failed")
	}
}

// Run ticks every interval until ctx is canceled. The first tick runs
// immediately.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	return s.Run(ctx)
}

// String names the service in supervisor logs.
func (s *Sweeper) String() string { return "trial-sweeper" }
