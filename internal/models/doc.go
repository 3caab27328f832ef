// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package models defines the data structures shared across Jellygate.

Key types:

  - TrialUser: local bookkeeping for a time-limited signup
  - TrialSettings / TrialSettingsUpdate: the singleton trial policy and its partial update
  - UserAccount: local record of a portal signup
  - Geolocation: resolved IP location
  - LogEntry: one access or activity log record

Jellyfin's own wire types live in package jellyfin; these are the types the
portal owns.
*/
package models
