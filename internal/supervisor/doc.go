// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package supervisor provides process supervision for the aiOS control plane
using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of every long-running component named in the boot order: the
discovery registry and process supervisor at L0, the trust root, audit
ledger and capability store at L1, and the tool registry dispatcher,
plugin manager, cluster manager, remote executor and RPC listener at L2.
It provides Erlang/OTP-style supervision with automatic restart, failure
isolation, and graceful shutdown.

# Overview

	RootSupervisor ("aios-core")
	├── FoundationSupervisor ("foundation-layer")
	│   ├── Discovery pruner
	│   └── ProcessService instances (one per managed OS service)
	├── CoreSupervisor ("core-layer")
	│   ├── Trust root rotation timer
	│   ├── Audit ledger retention sweep
	│   └── Capability store compactor
	└── ServicesSupervisor ("services-layer")
	    ├── Tool registry dispatcher workers
	    ├── Plugin event dispatcher
	    ├── Cluster heartbeat hub
	    └── RPC HTTP listener

This hierarchy ensures that a crash in a service-layer component does not
take discovery or the audit ledger down with it, and that L0/L1 failures
are isolated from whichever L2 component triggered them.

# Restart budget vs suture backoff

ProcessService layers an explicit (restart_window, max_restart_attempts)
budget on top of suture's own FailureThreshold/FailureBackoff: suture
throttles how fast a service is allowed to restart, the budget bounds how
many times total it may restart within a window before being marked
Failed and left stopped. See process_service.go.

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return nil for a clean stop that will not be restarted; return an error
for a crash that will be restarted (subject to the restart budget);
return promptly when ctx is canceled.
*/
package supervisor
