// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package jellyfin is a client for the parts of the Jellyfin REST API that the
portal needs: user provisioning, account administration and session listing.

API Reference: https://api.jellyfin.org/

Every failure is returned wrapped around one of ErrInvalidAPIKey,
ErrUnreachable or ErrNotFound, or as a *StatusError, so callers can branch
with errors.Is and still log a readable message such as
"jellyfin create user: invalid API key".
*/
package jellyfin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jellygate/internal/metrics"
)

// DefaultTimeout bounds every upstream request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 512

// ClientInterface is implemented by Client and CircuitBreakerClient.
type ClientInterface interface {
	Ping(ctx context.Context) error
	UserExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, username, password string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	FindUserByName(ctx context.Context, username string) (*User, error)
	DeleteUser(ctx context.Context, id string) error
	SetDisabled(ctx context.Context, id string, disabled bool) error
	ResetPassword(ctx context.Context, id, newPassword string) error
	UpdatePolicy(ctx context.Context, id string, update PolicyUpdate) error
	GetSessions(ctx context.Context) ([]Session, error)
}

var _ ClientInterface = (*Client)(nil)

// Client talks to one Jellyfin server with an admin API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client. baseURL may include a path prefix for servers
// behind a reverse proxy.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping checks that the server answers. It uses the public system info
// endpoint, so it does not validate the API key.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.SystemInfo(ctx)
	return err
}

// SystemInfo returns the public server summary.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.do(ctx, "ping", http.MethodGet, "/System/Info/Public", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListUsers returns every user.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, "list users", http.MethodGet, "/Users", nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// UserExists reports whether a user with this name exists. Jellyfin treats
// names case-insensitively, so the comparison does too.
func (c *Client) UserExists(ctx context.Context, username string) (bool, error) {
	_, err := c.FindUserByName(ctx, username)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// FindUserByName returns the user with this name, compared
// case-insensitively, or an error wrapping ErrNotFound.
func (c *Client) FindUserByName(ctx context.Context, username string) (*User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Name, username) {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("jellyfin find user %q: %w", username, ErrNotFound)
}

// GetUser returns one user by ID.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.do(ctx, "get user", http.MethodGet, "/Users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser creates a user with a password.
func (c *Client) CreateUser(ctx context.Context, username, password string) (*User, error) {
	var u User
	body := createUserRequest{Name: username, Password: password}
	if err := c.do(ctx, "create user", http.MethodPost, "/Users/New", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser deletes a user by ID.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, "delete user", http.MethodDelete, "/Users/"+url.PathEscape(id), nil, nil)
}

// SetDisabled enables or disables a user.
func (c *Client) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return c.UpdatePolicy(ctx, id, PolicyUpdate{IsDisabled: &disabled})
}

// UpdatePolicy reads the current policy, merges update into it and posts the
// whole document back.
func (c *Client) UpdatePolicy(ctx context.Context, id string, update PolicyUpdate) error {
	user, err := c.GetUser(ctx, id)
	if err != nil {
		return err
	}
	policy := update.ApplyTo(user.Policy)
	return c.do(ctx, "update policy", http.MethodPost, "/Users/"+url.PathEscape(id)+"/Policy", policy, nil)
}

// ResetPassword clears the user's password and sets a new one. Admin keys
// may skip the current password.
func (c *Client) ResetPassword(ctx context.Context, id, newPassword string) error {
	path := "/Users/" + url.PathEscape(id) + "/Password"
	if err := c.do(ctx, "reset password", http.MethodPost, path, passwordRequest{ResetPassword: true}, nil); err != nil {
		return err
	}
	return c.do(ctx, "set password", http.MethodPost, path, passwordRequest{NewPw: newPassword}, nil)
}

// GetSessions returns all sessions, including idle ones.
func (c *Client) GetSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.do(ctx, "list sessions", http.MethodGet, "/Sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// do performs one request. in is JSON-encoded when non-nil; out is decoded
// from a 2xx body when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.RecordUpstreamRequest(op, time.Since(start), err) }()

	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("jellyfin %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("jellyfin %s: failed to create request: %w", op, err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", "Jellygate")
	req.Header.Set("X-Emby-Device-Name", "Jellygate")
	req.Header.Set("X-Emby-Device-Id", "jellygate")
	req.Header.Set("X-Emby-Client-Version", "1.0.0")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin %s: %w: %w", op, ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("jellyfin %s: %w", op, ErrInvalidAPIKey)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("jellyfin %s: %w", op, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("jellyfin %s: failed to decode response: %w", op, err)
	}
	return nil
}
