// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package jellyfin

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned for 401 and 403 responses.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrUnreachable is returned when the server cannot be contacted or the
	// circuit breaker is open.
	ErrUnreachable = errors.New("server unreachable")

	// ErrNotFound is returned for 404 responses and unknown usernames.
	ErrNotFound = errors.New("not found")
)

// StatusError is any other non-success response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jellyfin %s returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("jellyfin %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsNotFound reports whether err means the user or resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
