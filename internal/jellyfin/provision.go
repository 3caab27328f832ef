// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package jellyfin

import (
	"context"

	"github.com/tomtom215/jellygate/internal/logging"
)

// ProvisionOptions controls the policy applied to self-service accounts.
type ProvisionOptions struct {
	DisableDownloads bool
}

// ProvisionUser creates an account and then tightens its policy: never an
// administrator, and no downloads when configured. Tightening is best
// effort. If it fails the account still exists and is returned.
func ProvisionUser(ctx context.Context, client ClientInterface, username, password string, opts ProvisionOptions) (*User, error) {
	user, err := client.CreateUser(ctx, username, password)
	if err != nil {
		return nil, err
	}

	notAdmin := false
	update := PolicyUpdate{IsAdministrator: &notAdmin}
	if opts.DisableDownloads {
		noDownloads := false
		update.EnableContentDownloading = &noDownloads
	}

	if err := client.UpdatePolicy(ctx, user.ID, update); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("username", username).Str("user_id", user.ID).
			Msg("Created Jellyfin user but failed to apply signup policy")
		return user, nil
	}

	user.Policy = update.ApplyTo(user.Policy)
	return user, nil
}
