// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package models

import "time"

// ExpiryAction is the remedy applied to an account when its trial lapses.
type ExpiryAction string

const (
	ExpiryActionDisable ExpiryAction = "disable"
	ExpiryActionDelete  ExpiryAction = "delete"
)

// Valid reports whether a is a known expiry action.
func (a ExpiryAction) Valid() bool {
	return a == ExpiryActionDisable || a == ExpiryActionDelete
}

// Trial duration bounds and defaults.
const (
	MinTrialDays          = 1
	MaxTrialDays          = 30
	DefaultTrialDays      = 7
	DefaultTrialEnabled   = true
	DefaultTrialExpiryAct = ExpiryActionDisable
)

// TrialUser is the local bookkeeping record for a time-limited signup.
// ExpiryDate is computed once at creation and never rewritten; IsExpired
// only ever goes from false to true.
type TrialUser struct {
	Username     string    `json:"username"`
	SignupDate   time.Time `json:"signup_date"`
	ExpiryDate   time.Time `json:"expiry_date"`
	IsExpired    bool      `json:"is_expired"`
	DurationDays int       `json:"duration_days"`
}

// TrialSettings is the singleton trial-mode configuration.
type TrialSettings struct {
	Enabled      bool         `json:"enabled"`
	DurationDays int          `json:"duration_days"`
	ExpiryAction ExpiryAction `json:"expiry_action"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// DefaultTrialSettings returns the settings persisted on first read.
func DefaultTrialSettings() TrialSettings {
	return TrialSettings{
		Enabled:      DefaultTrialEnabled,
		DurationDays: DefaultTrialDays,
		ExpiryAction: DefaultTrialExpiryAct,
	}
}

// TrialSettingsUpdate carries a partial settings change. Nil fields are left
// untouched.
type TrialSettingsUpdate struct {
	Enabled      *bool         `json:"enabled,omitempty"`
	DurationDays *int          `json:"duration_days,omitempty" validate:"omitempty,min=1,max=30"`
	ExpiryAction *ExpiryAction `json:"expiry_action,omitempty" validate:"omitempty,oneof=disable delete"`
}

// Apply merges u into s and returns the result. It does not validate.
func (u TrialSettingsUpdate) Apply(s TrialSettings) TrialSettings {
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	if u.DurationDays != nil {
		s.DurationDays = *u.DurationDays
	}
	if u.ExpiryAction != nil {
		s.ExpiryAction = *u.ExpiryAction
	}
	return s
}

// Validate checks the settings bounds.
func (s TrialSettings) Validate() bool {
	return s.DurationDays >= MinTrialDays && s.DurationDays <= MaxTrialDays && s.ExpiryAction.Valid()
}
