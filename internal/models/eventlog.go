// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package models

import "time"

// LogEntry is one access or activity record. Entries are append-only.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Username  string    `json:"username,omitempty"`
	Path      string    `json:"path,omitempty"`
	Activity  string    `json:"activity,omitempty"`
	Country   string    `json:"country,omitempty"`
	Region    string    `json:"region,omitempty"`
	City      string    `json:"city,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Activity values written to the activity log.
const (
	ActivitySignup         = "signup"
	ActivityLocationUpdate = "location-update"
	ActivitySession        = "session"
	ActivityAdminLogin     = "admin-login"
	ActivityAdminAction    = "admin-action"
	ActivityTrialExpired   = "trial-expired"
)

// ApplyGeo copies coarse location fields from g.
func (e *LogEntry) ApplyGeo(g *Geolocation) {
	if g == nil {
		return
	}
	e.Country = g.Country
	e.Region = g.Region
	e.City = g.City
}
