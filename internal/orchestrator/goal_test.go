// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_SubmitGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	id, err := s.Submit(ctx, "patch the kernel", 5, "cli", []string{"ops"}, map[string]string{"env": "prod"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	g, ok := s.Get(ctx, id)
	require.True(t, ok)
	require.Equal(t, "patch the kernel", g.Description)
	require.Equal(t, int32(5), g.Priority)
	require.Equal(t, StatusPending, g.Status)
	require.Equal(t, []string{"ops"}, g.Tags)
}

func TestStore_GetUnknownNotFound(t *testing.T) {
	s := NewStore()
	_, ok := s.Get(context.Background(), "does-not-exist")
	require.False(t, ok)
}

func TestStore_ListFiltersByStatusAndSource(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	id1, err := s.Submit(ctx, "goal one", 1, "cli", nil, nil)
	require.NoError(t, err)
	id2, err := s.Submit(ctx, "goal two", 1, "agent", nil, nil)
	require.NoError(t, err)

	require.True(t, s.SetStatus(ctx, id1, StatusDone))

	all := s.List(ctx, Filter{})
	require.Len(t, all, 2)

	pending := s.List(ctx, Filter{Status: StatusPending})
	require.Len(t, pending, 1)
	require.Equal(t, id2, pending[0].ID)

	fromCLI := s.List(ctx, Filter{Source: "cli"})
	require.Len(t, fromCLI, 1)
	require.Equal(t, id1, fromCLI[0].ID)
}

func TestStore_SetStatusUnknownReturnsFalse(t *testing.T) {
	s := NewStore()
	require.False(t, s.SetStatus(context.Background(), "does-not-exist", StatusActive))
}
