// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package models

import "time"

// UserAccount is the local record of an account created through the portal.
// The account itself lives on the Jellyfin server; this only remembers who
// signed up, when, and from where.
type UserAccount struct {
	Username   string    `json:"username"`
	JellyfinID string    `json:"jellyfin_id"`
	SignupIP   string    `json:"signup_ip,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
