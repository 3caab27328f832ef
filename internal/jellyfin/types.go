// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package jellyfin

import (
	"net"
	"strings"
	"time"
)

// User is an account on the Jellyfin server.
type User struct {
	ID               string     `json:"Id"`
	Name             string     `json:"Name"`
	HasPassword      bool       `json:"HasPassword"`
	LastLoginDate    *time.Time `json:"LastLoginDate,omitempty"`
	LastActivityDate *time.Time `json:"LastActivityDate,omitempty"`
	Policy           Policy     `json:"Policy,omitempty"`
}

// IsDisabled reports the policy's IsDisabled flag.
func (u *User) IsDisabled() bool { return u.Policy.Bool("IsDisabled") }

// IsAdministrator reports the policy's IsAdministrator flag.
func (u *User) IsAdministrator() bool { return u.Policy.Bool("IsAdministrator") }

// CanDownload reports the policy's EnableContentDownloading flag.
func (u *User) CanDownload() bool { return u.Policy.Bool("EnableContentDownloading") }

// Policy is a user's full policy document. Jellyfin replaces the whole
// policy on update, so unknown fields are kept verbatim and sent back.
type Policy map[string]interface{}

// Bool returns the boolean at key, false when absent or not a bool.
func (p Policy) Bool(key string) bool {
	v, ok := p[key].(bool)
	return ok && v
}

// PolicyUpdate is a partial policy change. Nil fields are left as they are.
type PolicyUpdate struct {
	IsDisabled               *bool `json:"isDisabled,omitempty"`
	IsAdministrator          *bool `json:"isAdministrator,omitempty"`
	EnableContentDownloading *bool `json:"enableContentDownloading,omitempty"`
	EnableRemoteAccess       *bool `json:"enableRemoteAccess,omitempty"`
}

// Empty reports whether u changes nothing.
func (u PolicyUpdate) Empty() bool {
	return u.IsDisabled == nil && u.IsAdministrator == nil &&
		u.EnableContentDownloading == nil && u.EnableRemoteAccess == nil
}

// ApplyTo merges u into a copy of p.
func (u PolicyUpdate) ApplyTo(p Policy) Policy {
	out := make(Policy, len(p)+4)
	for k, v := range p {
		out[k] = v
	}
	set := func(key string, v *bool) {
		if v != nil {
			out[key] = *v
		}
	}
	set("IsDisabled", u.IsDisabled)
	set("IsAdministrator", u.IsAdministrator)
	set("EnableContentDownloading", u.EnableContentDownloading)
	set("EnableRemoteAccess", u.EnableRemoteAccess)
	return out
}

// Session is an active client connection reported by /Sessions.
type Session struct {
	ID                 string    `json:"Id"`
	UserID             string    `json:"UserId"`
	UserName           string    `json:"UserName"`
	Client             string    `json:"Client"`
	DeviceName         string    `json:"DeviceName"`
	RemoteEndPoint     string    `json:"RemoteEndPoint"`
	LastActivityDate   time.Time `json:"LastActivityDate"`
	ApplicationVersion string    `json:"ApplicationVersion"`
	NowPlayingItem     *struct {
		Name string `json:"Name"`
		Type string `json:"Type"`
	} `json:"NowPlayingItem,omitempty"`
}

// IP returns RemoteEndPoint without a port.
func (s *Session) IP() string {
	ep := strings.TrimSpace(s.RemoteEndPoint)
	if host, _, err := net.SplitHostPort(ep); err == nil {
		return host
	}
	return strings.Trim(ep, "[]")
}

// SystemInfo is the unauthenticated server summary.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

type createUserRequest struct {
	Name     string `json:"Name"`
	Password string `json:"Password"`
}

type passwordRequest struct {
	CurrentPw     string `json:"CurrentPw,omitempty"`
	NewPw         string `json:"NewPw,omitempty"`
	ResetPassword bool   `json:"ResetPassword,omitempty"`
}
