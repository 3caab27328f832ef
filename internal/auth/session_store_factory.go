// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package auth

import (
	"fmt"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
)

// Session store backends, selected by security.session_store.
const (
	SessionStoreMemory = "memory"
	SessionStoreBadger = "badger"
)

// NewSessionStore builds the configured session store. The returned close
// function releases the backend and is never nil.
func NewSessionStore(cfg config.SecurityConfig, clk clock.Clock) (SessionStore, func() error, error) {
	switch cfg.SessionStore {
	case "", SessionStoreMemory:
		return NewMemorySessionStore(clk), func() error { return nil }, nil
	case SessionStoreBadger:
		store, err := OpenBadgerSessionStore(cfg.SessionStorePath, clk)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
