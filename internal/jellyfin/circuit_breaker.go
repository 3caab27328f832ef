// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/metrics"
)

var _ ClientInterface = (*CircuitBreakerClient)(nil)

// CircuitBreakerConfig tunes the breaker.
type CircuitBreakerConfig struct {
	Name string

	// MinRequests is the sample size needed before the breaker may open.
	MinRequests uint32

	// FailureRatio opens the breaker once reached.
	FailureRatio float64

	// Interval resets counts while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// MaxHalfOpen is the number of probe requests allowed while half-open.
	MaxHalfOpen uint32
}

// DefaultCircuitBreakerConfig opens after a 60% failure rate over at least
// 10 requests and probes again after 2 minutes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         "jellyfin-api",
		MinRequests:  10,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MaxHalfOpen:  3,
	}
}

// CircuitBreakerClient wraps a client so that a failing server is given time
// to recover instead of being hammered by every signup.
//
// Not-found responses are answers, not failures, and never trip the breaker.
type CircuitBreakerClient struct {
	client ClientInterface
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerClient wraps client.
func NewCircuitBreakerClient(client ClientInterface, cfg CircuitBreakerConfig) *CircuitBreakerClient {
	def := DefaultCircuitBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = def.FailureRatio
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxHalfOpen == 0 {
		cfg.MaxHalfOpen = def.MaxHalfOpen
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpen,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening Jellyfin circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] Jellyfin state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cfg.Name}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// run executes fn through the breaker. Rejections are reported as
// ErrUnreachable so callers handle them like a down server.
func run[T any](cbc *CircuitBreakerClient, op string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cbc.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Str("op", op).Msg("[CIRCUIT BREAKER] Jellyfin request rejected")
			return zero, fmt.Errorf("jellyfin %s: %w: %w", op, ErrUnreachable, err)
		}
		outcome := "failure"
		if errors.Is(err, ErrNotFound) {
			outcome = "not_found"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, outcome).Inc()
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()

	if result == nil {
		return zero, nil
	}
	v, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type for %s", op)
	}
	return v, nil
}

func runErr(cbc *CircuitBreakerClient, op string, fn func() error) error {
	_, err := run(cbc, op, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Ping implements ClientInterface.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	return runErr(cbc, "ping", func() error { return cbc.client.Ping(ctx) })
}

// UserExists implements ClientInterface.
func (cbc *CircuitBreakerClient) UserExists(ctx context.Context, username string) (bool, error) {
	return run(cbc, "user exists", func() (bool, error) { return cbc.client.UserExists(ctx, username) })
}

// CreateUser implements ClientInterface.
func (cbc *CircuitBreakerClient) CreateUser(ctx context.Context, username, password string) (*User, error) {
	return run(cbc, "create user", func() (*User, error) { return cbc.client.CreateUser(ctx, username, password) })
}

// ListUsers implements ClientInterface.
func (cbc *CircuitBreakerClient) ListUsers(ctx context.Context) ([]User, error) {
	return run(cbc, "list users", func() ([]User, error) { return cbc.client.ListUsers(ctx) })
}

// GetUser implements ClientInterface.
func (cbc *CircuitBreakerClient) GetUser(ctx context.Context, id string) (*User, error) {
	return run(cbc, "get user", func() (*User, error) { return cbc.client.GetUser(ctx, id) })
}

// FindUserByName implements ClientInterface.
func (cbc *CircuitBreakerClient) FindUserByName(ctx context.Context, username string) (*User, error) {
	return run(cbc, "find user", func() (*User, error) { return cbc.client.FindUserByName(ctx, username) })
}

// DeleteUser implements ClientInterface.
func (cbc *CircuitBreakerClient) DeleteUser(ctx context.Context, id string) error {
	return runErr(cbc, "delete user", func() error { return cbc.client.DeleteUser(ctx, id) })
}

// SetDisabled implements ClientInterface.
func (cbc *CircuitBreakerClient) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return runErr(cbc, "set disabled", func() error { return cbc.client.SetDisabled(ctx, id, disabled) })
}

// ResetPassword implements ClientInterface.
func (cbc *CircuitBreakerClient) ResetPassword(ctx context.Context, id, newPassword string) error {
	return runErr(cbc, "reset password", func() error { return cbc.client.ResetPassword(ctx, id, newPassword) })
}

// UpdatePolicy implements ClientInterface.
func (cbc *CircuitBreakerClient) UpdatePolicy(ctx context.Context, id string, update PolicyUpdate) error {
	return runErr(cbc, "update policy", func() error { return cbc.client.UpdatePolicy(ctx, id, update) })
}

// GetSessions implements ClientInterface.
func (cbc *CircuitBreakerClient) GetSessions(ctx context.Context) ([]Session, error) {
	return run(cbc, "list sessions", func() ([]Session, error) { return cbc.client.GetSessions(ctx) })
}

// State returns the current breaker state.
func (cbc *CircuitBreakerClient) State() gobreaker.State {
	return cbc.cb.State()
}

// Counts returns the current breaker counts.
func (cbc *CircuitBreakerClient) Counts() gobreaker.Counts {
	return cbc.cb.Counts()
}
