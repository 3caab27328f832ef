// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AdminBcryptCost is the bcrypt work factor for the admin password.
const AdminBcryptCost = 12

// ErrInvalidCredentials is returned for any username or password mismatch.
// Callers must not reveal which of the two was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AdminAuthenticator checks admin credentials against the configured account.
type AdminAuthenticator struct {
	username     string
	passwordHash []byte
}

// NewAdminAuthenticator hashes password once so that request-time checks
// never touch the plaintext.
func NewAdminAuthenticator(username, password string) (*AdminAuthenticator, error) {
	return NewAdminAuthenticatorWithCost(username, password, AdminBcryptCost)
}

// NewAdminAuthenticatorWithCost is NewAdminAuthenticator with an explicit
// bcrypt cost. Tests use bcrypt.MinCost.
func NewAdminAuthenticatorWithCost(username, password string, cost int) (*AdminAuthenticator, error) {
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("admin password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AdminAuthenticator{username: username, passwordHash: hash}, nil
}

// Username returns the configured admin username.
func (a *AdminAuthenticator) Username() string { return a.username }

// Verify returns nil when both username and password match.
func (a *AdminAuthenticator) Verify(username, password string) error {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passwordMatch := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil

	if !usernameMatch || !passwordMatch {
		return ErrInvalidCredentials
	}
	return nil
}
