// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewAdminAuthenticator_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewAdminAuthenticatorWithCost("", "secret-password-1", bcrypt.MinCost); err == nil {
		t.Error("expected error for empty username")
	}
	if _, err := NewAdminAuthenticatorWithCost("admin", "", bcrypt.MinCost); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestNewAdminAuthenticator_UsesCost12(t *testing.T) {
	t.Parallel()

	a, err := NewAdminAuthenticator("admin", "correct-horse-9")
	if err != nil {
		t.Fatal(err)
	}
	cost, err := bcrypt.Cost(a.passwordHash)
	if err != nil || cost != AdminBcryptCost {
		t.Errorf("bcrypt cost = %d, %v; want %d", cost, err, AdminBcryptCost)
	}
}

func TestAdminAuthenticator_Verify(t *testing.T) {
	t.Parallel()

	a, err := NewAdminAuthenticatorWithCost("admin", "correct-horse-9", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid", "admin", "correct-horse-9", false},
		{"wrong password", "admin", "wrong", true},
		{"wrong username", "root", "correct-horse-9", true},
		{"username case matters", "Admin", "correct-horse-9", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := a.Verify(tt.username, tt.password)
			if tt.wantErr && !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Verify() = %v, want ErrInvalidCredentials", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Verify() = %v", err)
			}
		})
	}
}
