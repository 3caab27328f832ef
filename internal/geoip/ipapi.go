// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package geoip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/jellygate/internal/models"
)

// ErrRateLimited is returned when a provider's local request budget is spent.
var ErrRateLimited = errors.New("geoip provider rate limit exceeded")

// IPAPIProvider uses the free ip-api.com endpoint.
// Rate limit: 45 requests per minute, no API key.
type IPAPIProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

type ipAPIResponse struct {
	Status      string  `json:"status"` // "success" or "fail"
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
}

// NewIPAPIProvider creates an ip-api.com provider.
func NewIPAPIProvider(timeout time.Duration) *IPAPIProvider {
	return &IPAPIProvider{
		client:  newHTTPClient(timeout),
		limiter: rate.NewLimiter(rate.Every(time.Minute/45), 45),
		baseURL: "http://ip-api.com/json",
	}
}

// Name returns the provider name.
func (p *IPAPIProvider) Name() string { return "ip-api" }

// IsAvailable returns true; ip-api.com needs no credentials.
func (p *IPAPIProvider) IsAvailable() bool { return true }

// Lookup queries ip-api.com.
func (p *IPAPIProvider) Lookup(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	if !p.limiter.Allow() {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrRateLimited)
	}

	url := fmt.Sprintf("%s/%s?fields=status,message,country,countryCode,regionName,city,lat,lon,timezone",
		p.baseURL, ipAddress)

	var result ipAPIResponse
	if err := getJSON(ctx, p.client, p.Name(), url, &result, nil); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("ip-api lookup failed: %s", result.Message)
	}

	return &models.Geolocation{
		IPAddress:   ipAddress,
		Latitude:    result.Lat,
		Longitude:   result.Lon,
		City:        result.City,
		Region:      result.RegionName,
		Country:     result.Country,
		CountryCode: result.CountryCode,
		Timezone:    result.Timezone,
		Provider:    p.Name(),
		LastUpdated: time.Now().UTC(),
	}, nil
}
