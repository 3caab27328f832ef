// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package api

import "time"

// Request bodies are validated with go-playground/validator tags through
// validation.ValidateStruct. Field names in error details are the JSON names.

// SignupRequest is the body of POST /api/jellyfin/users. The digit rule on
// the password is applied separately by config.SignupPasswordPolicy.
type SignupRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=32,jfusername"`
	Password        string `json:"password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"omitempty,eqfield=Password"`
}

// SignupTrial describes the trial granted at signup.
type SignupTrial struct {
	ExpiryDate   time.Time `json:"expiry_date"`
	DurationDays int       `json:"duration_days"`
}

// SignupResponse is returned with 201 Created.
type SignupResponse struct {
	UserID   string       `json:"user_id"`
	Username string       `json:"username"`
	Trial    *SignupTrial `json:"trial,omitempty"`
}

// PasswordCheckRequest is the body of POST /api/password-strength.
type PasswordCheckRequest struct {
	Username string `json:"username" validate:"max=32"`
	Password string `json:"password" validate:"max=128"`
}

// LocationRequest is the browser-reported position of a visitor.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Username  string   `json:"username" validate:"omitempty,max=32"`
}

// LoginRequest is the body of POST /api/admin/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// User actions accepted by POST /api/admin/users/action.
const (
	ActionDelete        = "delete"
	ActionEnable        = "enable"
	ActionDisable       = "disable"
	ActionResetPassword = "reset-password"
	ActionBulkDisable   = "bulk-disable"
)

// UserActionRequest names an action and its target upstream user IDs.
type UserActionRequest struct {
	Action      string   `json:"action" validate:"required,oneof=delete enable disable reset-password bulk-disable"`
	UserID      string   `json:"user_id" validate:"required_unless=Action bulk-disable,max=64"`
	UserIDs     []string `json:"user_ids" validate:"required_if=Action bulk-disable,max=500,dive,required,max=64"`
	NewPassword string   `json:"new_password" validate:"required_if=Action reset-password,max=128"`
}

// UserActionResult reports what an action touched.
type UserActionResult struct {
	Action    string   `json:"action"`
	Processed int      `json:"processed"`
	Failed    []string `json:"failed,omitempty"`
}

// SessionResponse reports the caller's admin session.
type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}
