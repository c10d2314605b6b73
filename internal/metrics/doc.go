// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the control plane's Prometheus instrumentation:
// dispatcher outcomes and latency, cluster routing decisions, plugin
// trigger firings, and audit write failures. Registered once at process
// start via promauto, scraped from the management HTTP listener's
// /metrics endpoint (registered alongside /healthz).
package metrics
