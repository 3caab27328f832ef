// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy defines requirements for password strength.
type PasswordPolicy struct {
	MinLength             int
	RequireUppercase      bool
	RequireLowercase      bool
	RequireDigit          bool
	RequireSpecial        bool
	ForbidCommonPasswords bool

	// ForbidUsernameSimilarity rejects passwords containing the username.
	ForbidUsernameSimilarity bool
}

// SignupPasswordPolicy is enforced on self-service signups: at least eight
// characters with at least one digit.
func SignupPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:    8,
		RequireDigit: true,
	}
}

// AdminPasswordPolicy is checked against ADMIN_PASSWORD at startup.
func AdminPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:                12,
		RequireDigit:             true,
		ForbidCommonPasswords:    true,
		ForbidUsernameSimilarity: true,
	}
}

// PasswordValidationResult contains details about password validation.
type PasswordValidationResult struct {
	Valid    bool             `json:"valid"`
	Errors   []string         `json:"errors"`
	Strength PasswordStrength `json:"strength"`
}

// PasswordStrength is the coarse score shown by the signup form's meter.
type PasswordStrength int

const (
	PasswordStrengthWeak PasswordStrength = iota
	PasswordStrengthFair
	PasswordStrengthGood
	PasswordStrengthStrong
	PasswordStrengthExcellent
)

// String returns the string representation of password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordStrengthWeak:
		return "weak"
	case PasswordStrengthFair:
		return "fair"
	case PasswordStrengthGood:
		return "good"
	case PasswordStrengthStrong:
		return "strong"
	case PasswordStrengthExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// MarshalText renders the strength by name in JSON.
func (s PasswordStrength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type charClasses struct {
	hasUpper   bool
	hasLower   bool
	hasDigit   bool
	hasSpecial bool
}

func (cc charClasses) count() int {
	n := 0
	for _, ok := range []bool{cc.hasUpper, cc.hasLower, cc.hasDigit, cc.hasSpecial} {
		if ok {
			n++
		}
	}
	return n
}

func analyzeCharClasses(password string) charClasses {
	var cc charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			cc.hasUpper = true
		case unicode.IsLower(r):
			cc.hasLower = true
		case unicode.IsDigit(r):
			cc.hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			cc.hasSpecial = true
		}
	}
	return cc
}

// Validate checks password against the policy. Length is counted in runes.
func (p PasswordPolicy) Validate(password, username string) PasswordValidationResult {
	result := PasswordValidationResult{Valid: true, Errors: make([]string, 0)}
	fail := func(msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, msg)
	}

	if n := utf8.RuneCountInString(password); n < p.MinLength {
		fail(fmt.Sprintf("password must be at least %d characters (got %d)", p.MinLength, n))
	}

	cc := analyzeCharClasses(password)
	if p.RequireUppercase && !cc.hasUpper {
		fail("password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !cc.hasLower {
		fail("password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !cc.hasDigit {
		fail("password must contain at least one digit")
	}
	if p.RequireSpecial && !cc.hasSpecial {
		fail("password must contain at least one special character")
	}
	if p.ForbidCommonPasswords && isCommonPassword(password) {
		fail("password is too common and easily guessable")
	}
	if p.ForbidUsernameSimilarity && username != "" &&
		strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		fail("password must not contain the username")
	}

	result.Strength = calculatePasswordStrength(password, cc)
	return result
}

// ValidateWithError returns the joined policy errors, or nil.
func (p PasswordPolicy) ValidateWithError(password, username string) error {
	result := p.Validate(password, username)
	if !result.Valid {
		return errors.New(strings.Join(result.Errors, "; "))
	}
	return nil
}

func calculatePasswordStrength(password string, cc charClasses) PasswordStrength {
	score := 0
	switch n := utf8.RuneCountInString(password); {
	case n >= 20:
		score += 4
	case n >= 16:
		score += 3
	case n >= 12:
		score += 2
	case n >= 8:
		score++
	}
	score += cc.count()
	if hasSequentialChars(password) {
		score--
	}
	if isCommonPassword(password) {
		score = 0
	}

	switch {
	case score >= 8:
		return PasswordStrengthExcellent
	case score >= 6:
		return PasswordStrengthStrong
	case score >= 4:
		return PasswordStrengthGood
	case score >= 2:
		return PasswordStrengthFair
	default:
		return PasswordStrengthWeak
	}
}

var commonPasswords = map[string]bool{
	"123456": true, "password": true, "123456789": true, "12345678": true,
	"1234567890": true, "qwerty": true, "abc123": true, "password1": true,
	"password123": true, "admin": true, "admin123": true, "letmein": true,
	"welcome": true, "welcome1": true, "welcome123": true, "iloveyou": true,
	"sunshine": true, "trustno1": true, "passw0rd": true, "p@ssw0rd": true,
	"changeme": true, "qwerty123": true, "abcd1234": true, "1q2w3e4r": true,
	"test123": true, "administrator": true, "administrator123": true,
	"jellyfin": true, "jellyfin1": true, "jellyfin123": true, "jellygate": true,
	"media": true, "mediaserver": true, "streaming": true, "homelab": true,
}

func isCommonPassword(password string) bool {
	return commonPasswords[strings.ToLower(password)]
}

// hasSequentialChars reports runs like abc or 321.
func hasSequentialChars(password string) bool {
	runes := []rune(strings.ToLower(password))
	run := 0
	for i := 1; i < len(runes); i++ {
		if diff := runes[i] - runes[i-1]; diff == 1 || diff == -1 {
			run++
			if run >= 2 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
