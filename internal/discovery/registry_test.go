// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	r.Register("tools", "127.0.0.1:50052", "grpc", "v1", nil)
	r.Register("tools", "127.0.0.1:50099", "grpc", "v2", nil)

	rec, ok := r.Lookup("tools")
	require.True(t, ok)
	require.Equal(t, "127.0.0.1:50099", rec.Address)
	require.Equal(t, "v2", rec.Version)
}

func TestRegistry_LookupFreshness(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	r.Register("tools", "addr", "grpc", "v1", nil)

	_, ok := r.Lookup("tools")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok = r.Lookup("tools")
	require.False(t, ok)
}

func TestRegistry_HeartbeatExtendsLiveness(t *testing.T) {
	r := NewRegistry(80 * time.Millisecond)
	r.Register("tools", "addr", "grpc", "v1", nil)

	time.Sleep(50 * time.Millisecond)
	r.Heartbeat("tools")
	time.Sleep(50 * time.Millisecond)

	_, ok := r.Lookup("tools")
	require.True(t, ok)
}

func TestRegistry_HeartbeatUnknownIsNoop(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Heartbeat("unknown")
	require.Equal(t, 0, r.Count())
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("tools", "addr", "grpc", "v1", nil)
	r.Deregister("tools")

	_, ok := r.Lookup("tools")
	require.False(t, ok)
}

func TestRegistry_LookupByKind(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("tools", "addr1", "grpc", "v1", nil)
	r.Register("memory", "addr2", "grpc", "v1", nil)
	r.Register("gateway", "addr3", "http", "v1", nil)

	recs := r.LookupByKind("grpc")
	require.Len(t, recs, 2)
}

func TestRegistry_PruneStaleRemovesExactlyComplement(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	r.Register("fresh", "addr1", "grpc", "v1", nil)
	r.Register("stale", "addr2", "grpc", "v1", nil)

	time.Sleep(70 * time.Millisecond)
	r.Heartbeat("fresh")

	pruned := r.PruneStale()
	require.ElementsMatch(t, []string{"stale"}, pruned)

	_, ok := r.Lookup("fresh")
	require.True(t, ok)
	require.Equal(t, 1, r.Count())
}
