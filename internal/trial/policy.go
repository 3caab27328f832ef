// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

// Package trial implements the free-trial lifecycle: enrolling new signups,
// classifying records, and the sweep that disables or deletes accounts whose
// trial has run out.
//
// A record moves through active, expiring and expired purely as a function of
// the clock. The only persisted transition is the expired flag, which the
// sweep sets after it has acted upstream, so it is also the gate that keeps a
// second sweep from acting twice.
package trial

import (
	"context"
	"time"

	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
)

// ExpiringWindow is how close to expiry a trial is reported as expiring.
const ExpiringWindow = 48 * time.Hour

// Status is the derived lifecycle state of a trial record.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
)

// IsExpired reports whether now is at or past the record's expiry date.
func IsExpired(r *models.TrialUser, now time.Time) bool {
	return !now.Before(r.ExpiryDate)
}

// ComputeExpiry returns signup plus days whole days.
func ComputeExpiry(signup time.Time, days int) time.Time {
	return signup.Add(time.Duration(days) * 24 * time.Hour)
}

// Remaining returns the time left, never negative.
func Remaining(r *models.TrialUser, now time.Time) time.Duration {
	if d := r.ExpiryDate.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Classify derives the lifecycle state of r at now.
func Classify(r *models.TrialUser, now time.Time) Status {
	switch {
	case r.IsExpired || IsExpired(r, now):
		return StatusExpired
	case r.ExpiryDate.Sub(now) < ExpiringWindow:
		return StatusExpiring
	default:
		return StatusActive
	}
}

// ActionFor returns the remedy configured in s, falling back to disable.
func ActionFor(s *models.TrialSettings) models.ExpiryAction {
	if s == nil || !s.ExpiryAction.Valid() {
		return models.ExpiryActionDisable
	}
	return s.ExpiryAction
}

// Enroll creates a trial record for a new signup when trial mode is on.
// It returns nil, nil when trial mode is off.
func Enroll(ctx context.Context, repo storage.Repository, username string, now time.Time) (*models.TrialUser, error) {
	settings, err := repo.GetTrialSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, nil
	}
	return repo.CreateTrialUser(ctx, username, now, ComputeExpiry(now, settings.DurationDays), settings.DurationDays)
}

// View is a trial record annotated for the admin dashboard.
type View struct {
	models.TrialUser
	Status        Status  `json:"status"`
	RemainingDays float64 `json:"remaining_days"`
}

// Describe annotates records with their status at now.
func Describe(records []models.TrialUser, now time.Time) []View {
	out := make([]View, 0, len(records))
	for i := range records {
		r := &records[i]
		out = append(out, View{
			TrialUser:     *r,
			Status:        Classify(r, now),
			RemainingDays: Remaining(r, now).Hours() / 24,
		})
	}
	return out
}
