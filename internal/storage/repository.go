// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

// Package storage persists local account records, trial records and the
// trial settings singleton.
//
// Three interchangeable backends implement Repository:
//
//   - memory: mutex-guarded maps, for tests and throwaway deployments
//   - sql: database/sql over DuckDB, PostgreSQL (pgx) or SQLite (modernc)
//   - badger: an embedded key/value document store
//
// All of them pass the same contract test suite, so callers never branch on
// the backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidSettings is returned when a settings update leaves the
	// duration outside 1..30 days or names an unknown expiry action.
	ErrInvalidSettings = errors.New("invalid trial settings")

	// ErrInvalidUsername is returned for an empty username.
	ErrInvalidUsername = errors.New("username is required")
)

// Repository is the persistence contract shared by every backend.
type Repository interface {
	CreateUserAccount(ctx context.Context, account *models.UserAccount) error
	GetUserAccount(ctx context.Context, username string) (*models.UserAccount, error)
	ListUserAccounts(ctx context.Context) ([]models.UserAccount, error)
	DeleteUserAccount(ctx context.Context, username string) error

	GetTrialUser(ctx context.Context, username string) (*models.TrialUser, error)
	GetAllTrialUsers(ctx context.Context) ([]models.TrialUser, error)

	// GetExpiredTrialUsers returns records that are flagged expired OR whose
	// expiry date is at or before now. The result deliberately includes
	// already-processed records; the sweep decides what still needs work.
	GetExpiredTrialUsers(ctx context.Context, now time.Time) ([]models.TrialUser, error)

	CreateTrialUser(ctx context.Context, username string, signup, expiry time.Time, durationDays int) (*models.TrialUser, error)
	MarkTrialUserExpired(ctx context.Context, username string) error
	DeleteTrialUser(ctx context.Context, username string) error

	// GetTrialSettings returns the settings, persisting the defaults the
	// first time it is called on an empty store.
	GetTrialSettings(ctx context.Context) (*models.TrialSettings, error)
	UpdateTrialSettings(ctx context.Context, update models.TrialSettingsUpdate) (*models.TrialSettings, error)

	Ping(ctx context.Context) error
	Close() error
}

// Backend names.
const (
	BackendMemory = config.StorageBackendMemory
	BackendSQL    = config.StorageBackendSQL
	BackendBadger = config.StorageBackendBadger
)

// New opens the configured backend. On error the returned Repository is a
// true nil, never a typed nil pointer.
func New(ctx context.Context, cfg config.StorageConfig, clk clock.Clock) (Repository, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(clk), nil
	case "", BackendSQL:
		repo, err := OpenSQL(ctx, cfg.ResolveSQLDriver(), cfg.DSN, cfg.MaxOpenConns, clk)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case BackendBadger:
		repo, err := OpenBadger(cfg.BadgerPath, clk)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// storeTime normalizes timestamps to the precision every backend keeps.
func storeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func checkUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrInvalidUsername
	}
	return nil
}

// isExpiredAt is the read predicate shared by every backend.
func isExpiredAt(t *models.TrialUser, now time.Time) bool {
	return t.IsExpired || !t.ExpiryDate.After(now)
}

// applySettings merges and validates an update against current settings.
func applySettings(current models.TrialSettings, update models.TrialSettingsUpdate, now time.Time) (models.TrialSettings, error) {
	next := update.Apply(current)
	if !next.Validate() {
		return current, fmt.Errorf("%w: duration must be %d-%d days and action disable or delete",
			ErrInvalidSettings, models.MinTrialDays, models.MaxTrialDays)
	}
	next.UpdatedAt = storeTime(now)
	return next, nil
}

func defaultSettings(now time.Time) models.TrialSettings {
	s := models.DefaultTrialSettings()
	s.UpdatedAt = storeTime(now)
	return s
}

func orClock(clk clock.Clock) clock.Clock {
	if clk == nil {
		return clock.Real{}
	}
	return clk
}
