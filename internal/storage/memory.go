// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/models"
)

// MemoryRepository keeps everything in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	clock    clock.Clock
	accounts map[string]models.UserAccount
	trials   map[string]models.TrialUser
	settings *models.TrialSettings
}

// NewMemory creates an empty in-memory repository.
func NewMemory(clk clock.Clock) *MemoryRepository {
	return &MemoryRepository{
		clock:    orClock(clk),
		accounts: make(map[string]models.UserAccount),
		trials:   make(map[string]models.TrialUser),
	}
}

// CreateUserAccount implements Repository.
func (m *MemoryRepository) CreateUserAccount(_ context.Context, account *models.UserAccount) error {
	if err := checkUsername(account.Username); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.Username]; ok {
		return ErrAlreadyExists
	}
	a := *account
	a.CreatedAt = storeTime(a.CreatedAt)
	m.accounts[a.Username] = a
	return nil
}

// GetUserAccount implements Repository.
func (m *MemoryRepository) GetUserAccount(_ context.Context, username string) (*models.UserAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

// ListUserAccounts implements Repository.
func (m *MemoryRepository) ListUserAccounts(_ context.Context) ([]models.UserAccount, error) {
	m.mu.RLock()
	out := make([]models.UserAccount, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sortAccounts(out)
	return out, nil
}

// DeleteUserAccount implements Repository.
func (m *MemoryRepository) DeleteUserAccount(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, username)
	return nil
}

// GetTrialUser implements Repository.
func (m *MemoryRepository) GetTrialUser(_ context.Context, username string) (*models.TrialUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trials[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// GetAllTrialUsers implements Repository.
func (m *MemoryRepository) GetAllTrialUsers(_ context.Context) ([]models.TrialUser, error) {
	return m.filterTrials(func(*models.TrialUser) bool { return true }), nil
}

// GetExpiredTrialUsers implements Repository.
func (m *MemoryRepository) GetExpiredTrialUsers(_ context.Context, now time.Time) ([]models.TrialUser, error) {
	return m.filterTrials(func(t *models.TrialUser) bool { return isExpiredAt(t, now) }), nil
}

func (m *MemoryRepository) filterTrials(keep func(*models.TrialUser) bool) []models.TrialUser {
	m.mu.RLock()
	out := make([]models.TrialUser, 0, len(m.trials))
	for _, t := range m.trials {
		if keep(&t) {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()
	sortTrials(out)
	return out
}

// CreateTrialUser implements Repository.
func (m *MemoryRepository) CreateTrialUser(_ context.Context, username string, signup, expiry time.Time, durationDays int) (*models.TrialUser, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	t := models.TrialUser{
		Username:     username,
		SignupDate:   storeTime(signup),
		ExpiryDate:   storeTime(expiry),
		DurationDays: durationDays,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trials[username]; ok {
		return nil, ErrAlreadyExists
	}
	m.trials[username] = t
	return &t, nil
}

// MarkTrialUserExpired implements Repository.
func (m *MemoryRepository) MarkTrialUserExpired(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trials[username]; ok {
		t.IsExpired = true
		m.trials[username] = t
	}
	return nil
}

// DeleteTrialUser implements Repository.
func (m *MemoryRepository) DeleteTrialUser(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trials, username)
	return nil
}

// GetTrialSettings implements Repository.
func (m *MemoryRepository) GetTrialSettings(_ context.Context) (*models.TrialSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settingsLocked()
	return &s, nil
}

// UpdateTrialSettings implements Repository.
func (m *MemoryRepository) UpdateTrialSettings(_ context.Context, update models.TrialSettingsUpdate) (*models.TrialSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := applySettings(m.settingsLocked(), update, m.clock.Now())
	if err != nil {
		return nil, err
	}
	m.settings = &next
	return &next, nil
}

func (m *MemoryRepository) settingsLocked() models.TrialSettings {
	if m.settings == nil {
		s := defaultSettings(m.clock.Now())
		m.settings = &s
	}
	return *m.settings
}

// Ping implements Repository.
func (m *MemoryRepository) Ping(context.Context) error { return nil }

// Close implements Repository.
func (m *MemoryRepository) Close() error { return nil }

func sortTrials(ts []models.TrialUser) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].SignupDate.Equal(ts[j].SignupDate) {
			return ts[i].Username < ts[j].Username
		}
		return ts[i].SignupDate.Before(ts[j].SignupDate)
	})
}

func sortAccounts(as []models.UserAccount) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].Username < as[j].Username
		}
		return as[i].CreatedAt.Before(as[j].CreatedAt)
	})
}
