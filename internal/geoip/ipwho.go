// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package geoip

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/jellygate/internal/models"
)

// IPWhoProvider uses ipwho.is.
type IPWhoProvider struct {
	client  *http.Client
	baseURL string
}

type ipWhoResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    struct {
		ID string `json:"id"`
	} `json:"timezone"`
}

// NewIPWhoProvider creates an ipwho.is provider.
func NewIPWhoProvider(timeout time.Duration) *IPWhoProvider {
	return &IPWhoProvider{
		client:  newHTTPClient(timeout),
		baseURL: "https://ipwho.is",
	}
}

// Name returns the provider name.
func (p *IPWhoProvider) Name() string { return "ipwho.is" }

// IsAvailable returns true; ipwho.is needs no credentials.
func (p *IPWhoProvider) IsAvailable() bool { return true }

// Lookup queries ipwho.is.
func (p *IPWhoProvider) Lookup(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	var result ipWhoResponse
	if err := getJSON(ctx, p.client, p.Name(), p.baseURL+"/"+ipAddress, &result, nil); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("ipwho.is lookup failed: %s", result.Message)
	}

	return &models.Geolocation{
		IPAddress:   ipAddress,
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		City:        result.City,
		Region:      result.Region,
		Country:     result.Country,
		CountryCode: result.CountryCode,
		Timezone:    result.Timezone.ID,
		Provider:    p.Name(),
		LastUpdated: time.Now().UTC(),
	}, nil
}
