// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package geoip

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/jellygate/internal/models"
)

// FreeIPAPIProvider uses freeipapi.com.
type FreeIPAPIProvider struct {
	client  *http.Client
	baseURL string
}

type freeIPAPIResponse struct {
	IPAddress   string   `json:"ipAddress"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	CountryName string   `json:"countryName"`
	CountryCode string   `json:"countryCode"`
	RegionName  string   `json:"regionName"`
	CityName    string   `json:"cityName"`
	TimeZones   []string `json:"timeZones"`
}

// NewFreeIPAPIProvider creates a freeipapi.com provider.
func NewFreeIPAPIProvider(timeout time.Duration) *FreeIPAPIProvider {
	return &FreeIPAPIProvider{
		client:  newHTTPClient(timeout),
		baseURL: "https://freeipapi.com/api/json",
	}
}

// Name returns the provider name.
func (p *FreeIPAPIProvider) Name() string { return "freeipapi" }

// IsAvailable returns true; freeipapi.com needs no credentials.
func (p *FreeIPAPIProvider) IsAvailable() bool { return true }

// Lookup queries freeipapi.com. The service answers unknown addresses with
// an empty country, which the resolver treats as a failure.
func (p *FreeIPAPIProvider) Lookup(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	var result freeIPAPIResponse
	if err := getJSON(ctx, p.client, p.Name(), p.baseURL+"/"+ipAddress, &result, nil); err != nil {
		return nil, err
	}

	geo := &models.Geolocation{
		IPAddress:   ipAddress,
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		City:        result.CityName,
		Region:      result.RegionName,
		Country:     result.CountryName,
		CountryCode: result.CountryCode,
		Provider:    p.Name(),
		LastUpdated: time.Now().UTC(),
	}
	if len(result.TimeZones) > 0 {
		geo.Timezone = result.TimeZones[0]
	}
	return geo, nil
}
