// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package adminauthz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestService_AdminCanManageEverything(t *testing.T) {
	ctx := context.Background()
	enforcer, err := NewEnforcer(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(enforcer.Close)

	svc := NewService(enforcer)
	require.NoError(t, svc.CanGrantCapability(ctx, "root"))
	require.NoError(t, svc.CanRevokeCapability(ctx, "root"))
	require.NoError(t, svc.CanCreatePlugin(ctx, "root"))
	require.NoError(t, svc.CanDeletePlugin(ctx, "root"))
	require.NoError(t, svc.CanRotateCerts(ctx, "root"))
}

func TestService_OperatorCannotManageGrants(t *testing.T) {
	ctx := context.Background()
	enforcer, err := NewEnforcer(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(enforcer.Close)
	_, err = enforcer.AddGroupingPolicy("svc-operator", "operator")
	require.NoError(t, err)

	svc := NewService(enforcer)
	require.Error(t, svc.CanGrantCapability(ctx, "svc-operator"))
	require.NoError(t, svc.CanRotateCerts(ctx, "svc-operator"))
}

func TestService_UnknownSubjectDenied(t *testing.T) {
	ctx := context.Background()
	enforcer, err := NewEnforcer(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(enforcer.Close)

	svc := NewService(enforcer)
	require.Error(t, svc.CanGrantCapability(ctx, "stranger"))
}
