// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit implements the append-only audit ledger: one Entry per
// tool dispatch, success or failure, written by internal/registry's
// dispatcher before it returns a response to the caller. Entries are
// never exposed for deletion through the dispatcher's own API - Delete
// exists only for an operator-triggered retention sweep.
//
// Two Store implementations are provided: MemoryStore for tests and
// DuckDBStore, backed by data/audit.db, for production. Both support
// Query filtering by agent_id, tool_name, outcome, and a timestamp
// range, ordered by id descending, matching spec.md §4.9.
package audit
