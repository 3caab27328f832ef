// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

// Package analytics summarizes the access and activity logs for the admin
// dashboard. Everything is computed in memory over the bounded logs, so a
// summary never costs more than one pass over a few thousand entries.
package analytics

import (
	"sort"
	"time"

	"github.com/tomtom215/jellygate/internal/models"
)

const (
	// TopN bounds the country and path rankings.
	TopN = 10

	// DailyWindow is the number of calendar days in Summary.Daily.
	DailyWindow = 14

	unknownCountry = "Unknown"
	dateLayout     = "2006-01-02"
)

// Summary is the visit analytics payload.
type Summary struct {
	TotalVisits   int          `json:"total_visits"`
	UniqueIPs     int          `json:"unique_ips"`
	UniqueUsers   int          `json:"unique_users"`
	Last24Hours   int          `json:"last_24h"`
	Last7Days     int          `json:"last_7d"`
	TopCountries  []RankedItem `json:"top_countries"`
	TopPaths      []RankedItem `json:"top_paths"`
	Daily         []DailyCount `json:"daily"`
	FirstSeen     *time.Time   `json:"first_seen,omitempty"`
	LastSeen      *time.Time   `json:"last_seen,omitempty"`
	GeneratedAt   time.Time    `json:"generated_at"`
	WindowEntries int          `json:"window_entries"`
}

// RankedItem is one row of a top-N ranking.
type RankedItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyCount is the number of entries on one UTC calendar day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Summarize computes a Summary over entries as of now. Activity entries
// without a path are ranked by their activity name instead.
func Summarize(entries []models.LogEntry, now time.Time) Summary {
	now = now.UTC()
	s := Summary{
		TotalVisits: len(entries),
		GeneratedAt: now,
	}

	ips := make(map[string]struct{})
	users := make(map[string]struct{})
	countries := make(map[string]int)
	paths := make(map[string]int)

	today := startOfDay(now)
	firstDay := today.AddDate(0, 0, -(DailyWindow - 1))
	daily := make(map[string]int, DailyWindow)

	for i := range entries {
		e := &entries[i]
		ts := e.Timestamp.UTC()

		if e.IP != "" {
			ips[e.IP] = struct{}{}
		}
		if e.Username != "" {
			users[e.Username] = struct{}{}
		}

		country := e.Country
		if country == "" {
			country = unknownCountry
		}
		countries[country]++

		if key := pathKey(e); key != "" {
			paths[key]++
		}

		age := now.Sub(ts)
		if age >= 0 && age <= 24*time.Hour {
			s.Last24Hours++
		}
		if age >= 0 && age <= 7*24*time.Hour {
			s.Last7Days++
		}
		if !ts.Before(firstDay) && !ts.After(now) {
			daily[ts.Format(dateLayout)]++
			s.WindowEntries++
		}

		if s.FirstSeen == nil || ts.Before(*s.FirstSeen) {
			t := ts
			s.FirstSeen = &t
		}
		if s.LastSeen == nil || ts.After(*s.LastSeen) {
			t := ts
			s.LastSeen = &t
		}
	}

	s.UniqueIPs = len(ips)
	s.UniqueUsers = len(users)
	s.TopCountries = rank(countries, TopN)
	s.TopPaths = rank(paths, TopN)

	s.Daily = make([]DailyCount, 0, DailyWindow)
	for d := firstDay; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		s.Daily = append(s.Daily, DailyCount{Date: key, Count: daily[key]})
	}
	return s
}

func pathKey(e *models.LogEntry) string {
	if e.Path != "" {
		return e.Path
	}
	return e.Activity
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rank orders counts descending, ties by name, and keeps the first n.
func rank(counts map[string]int, n int) []RankedItem {
	items := make([]RankedItem, 0, len(counts))
	for name, count := range counts {
		items = append(items, RankedItem{Name: name, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}
