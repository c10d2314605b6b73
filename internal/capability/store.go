// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package capability is the TTL-bounded per-agent capability grant store
// (spec.md §3 CapabilityGrant, §4.5). A grant is active iff it has not
// been revoked and now < expires_at; an agent's effective capability set
// is the union of its active grants. Grants are never edited in place -
// re-granting inserts a new row, and the read-time "now < expires_at"
// filter means no sweeper is required for correctness.
package capability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Grant is one row of the capability store.
type Grant struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Capability string    `json:"capability"`
	Reason     string    `json:"reason"`
	GrantedAt  time.Time `json:"granted_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
}

// active reports whether g is usable for authorization at t.
func (g Grant) active(t time.Time) bool {
	return !g.Revoked && t.Before(g.ExpiresAt)
}

// Store persists capability grants and answers the dispatcher's
// authorization question: what is agentID's active capability set right
// now.
type Store interface {
	// Grant inserts one row per capability, all sharing the same
	// expires_at, and returns that expiry.
	Grant(ctx context.Context, agentID string, capabilities []string, reason string, duration time.Duration) (time.Time, error)

	// Revoke marks matching active rows revoked. If capabilities is empty,
	// every active row for agentID is revoked. Returns the count revoked.
	Revoke(ctx context.Context, agentID string, capabilities []string) (int, error)

	// ActiveCapabilities returns the union of agentID's non-revoked,
	// unexpired capability names.
	ActiveCapabilities(ctx context.Context, agentID string) (map[string]bool, error)

	// HasCapability is a convenience check used on the dispatcher's hot
	// path; equivalent to testing membership in ActiveCapabilities.
	HasCapability(ctx context.Context, agentID, capability string) (bool, error)

	// ListGrants returns every row ever written for agentID, including
	// revoked and expired ones, newest first - used by audit/inspection
	// tooling, never by the authorization path itself.
	ListGrants(ctx context.Context, agentID string) ([]Grant, error)

	// CompactExpired deletes rows expired for longer than olderThan, for
	// an operator-triggered or background-scheduled bound on DB growth.
	// Not required for correctness: expiry is already enforced at read
	// time.
	CompactExpired(ctx context.Context, olderThan time.Duration) (int, error)

	Close() error
}

// newGrantRows expands capabilities into one Grant per capability,
// sharing a single id->agent batch identity via fresh UUIDs, a common
// granted_at, and a common expires_at.
func newGrantRows(agentID string, capabilities []string, reason string, duration time.Duration) ([]Grant, time.Time) {
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	now := time.Now()
	expires := now.Add(duration)
	rows := make([]Grant, 0, len(capabilities))
	for _, c := range capabilities {
		rows = append(rows, Grant{
			ID:         uuid.NewString(),
			AgentID:    agentID,
			Capability: c,
			Reason:     reason,
			GrantedAt:  now,
			ExpiresAt:  expires,
		})
	}
	return rows, expires
}
