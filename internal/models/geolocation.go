// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package models

import "time"

// Geolocation is a resolved location for an IP address. Coarse fields come
// from geo-IP services; Latitude/Longitude may also come from the browser.
type Geolocation struct {
	IPAddress      string    `json:"ip_address"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	City           string    `json:"city,omitempty"`
	Region         string    `json:"region,omitempty"`
	Country        string    `json:"country"`
	CountryCode    string    `json:"country_code,omitempty"`
	Timezone       string    `json:"timezone,omitempty"`
	AccuracyRadius int       `json:"accuracy_radius,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
}

// WellFormed reports whether g carries at least a country.
func (g *Geolocation) WellFormed() bool {
	return g != nil && g.Country != ""
}
