// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

/*
Package supervisor runs Jellygate's long-lived goroutines under suture v4.

# Overview

	RootSupervisor ("jellygate")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── trial.Sweeper          (expiry sweep and session scan)
	│   ├── session-cleanup        (auth.RunCleanup)
	│   └── lockout-cleanup        (services.Periodic over auth.Lockout.Cleanup)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted; repeated crashes put only its own layer
into backoff, so a sweeper failing against an unreachable Jellyfin never
stops the signup page from being served.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMaintenanceService(sweeper)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

# Failure Handling

Each failure bumps a counter that decays over FailureDecay seconds. Past
FailureThreshold the supervisor waits FailureBackoff before the next
restart. Services must return promptly once their context is canceled;
UnstoppedServiceReport lists those that missed ShutdownTimeout.

Storage handles are not supervised. They are opened before the tree starts
and closed after it stops.
*/
package supervisor
