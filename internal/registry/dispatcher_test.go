// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MohaMehrzad/aios-core/internal/audit"
	"github.com/MohaMehrzad/aios-core/internal/auth"
	"github.com/MohaMehrzad/aios-core/internal/capability"
	"github.com/MohaMehrzad/aios-core/internal/config"
)

// memAuditStore is a minimal in-memory audit.Store for dispatcher tests.
type memAuditStore struct {
	entries []audit.Entry
	failing bool
}

func (s *memAuditStore) Save(ctx context.Context, e *audit.Entry) error {
	if s.failing {
		return errors.New("simulated audit write failure")
	}
	e.ID = int64(len(s.entries) + 1)
	e.Timestamp = time.Now()
	s.entries = append(s.entries, *e)
	return nil
}
func (s *memAuditStore) Get(ctx context.Context, id int64) (*audit.Entry, error) {
	for _, e := range s.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, errors.New("not found")
}
func (s *memAuditStore) Query(ctx context.Context, f audit.QueryFilter) ([]audit.Entry, error) {
	return s.entries, nil
}
func (s *memAuditStore) Count(ctx context.Context, f audit.QueryFilter) (int64, error) {
	return int64(len(s.entries)), nil
}
func (s *memAuditStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry, capability.Store, *memAuditStore, *auth.ConfirmationManager) {
	t.Helper()
	reg := New()
	caps := capability.NewMemoryStore()
	auditStore := &memAuditStore{}
	confirmations, err := auth.NewConfirmationManager(&config.RegistryConfig{
		ConfirmationSecret: "0123456789abcdef0123456789abcdef",
		DefaultToolTimeout: time.Minute,
	})
	require.NoError(t, err)

	d := NewDispatcher(reg, caps, auditStore, confirmations, nil, nil, 5*time.Second, 1000)
	return d, reg, caps, auditStore, confirmations
}

func TestDispatcherPermissionDenied(t *testing.T) {
	// S1: agent lacking a required capability is rejected before execution.
	d, reg, _, auditStore, _ := newTestDispatcher(t)
	called := false
	reg.RegisterTool(MakeTool("fs.read", "fs", "read a file", []string{"fs.read"}, RiskLow, true, true, 1000),
		func(ctx context.Context, input []byte) ([]byte, error) {
			called = true
			return []byte(`{"ok":true}`), nil
		})

	_, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "fs.read", Action: "test"})
	require.Error(t, err)
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindPermissionDenied, derr.Kind)
	require.False(t, called)
	require.Len(t, auditStore.entries, 1)
	require.Equal(t, audit.OutcomeFailure, auditStore.entries[0].Outcome)
}

func TestDispatcherGrantThenExecute(t *testing.T) {
	// S2: granting the capability first allows the same call to succeed.
	d, reg, caps, auditStore, _ := newTestDispatcher(t)
	reg.RegisterTool(MakeTool("fs.read", "fs", "read a file", []string{"fs.read"}, RiskLow, true, true, 1000),
		func(ctx context.Context, input []byte) ([]byte, error) {
			return []byte(`{"ok":true}`), nil
		})

	_, err := caps.Grant(context.Background(), "a1", []string{"fs.read"}, "test", time.Hour)
	require.NoError(t, err)

	res, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "fs.read", Action: "test"})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(res.Output))
	require.Len(t, auditStore.entries, 1)
	require.Equal(t, audit.OutcomeSuccess, auditStore.entries[0].Outcome)
}

func TestDispatcherRevokeTakesEffect(t *testing.T) {
	// S3: revoking a previously granted capability denies the next call.
	d, reg, caps, auditStore, _ := newTestDispatcher(t)
	reg.RegisterTool(MakeTool("fs.read", "fs", "read a file", []string{"fs.read"}, RiskLow, true, true, 1000),
		func(ctx context.Context, input []byte) ([]byte, error) {
			return []byte(`{"ok":true}`), nil
		})

	_, err := caps.Grant(context.Background(), "a1", []string{"fs.read"}, "test", time.Hour)
	require.NoError(t, err)
	_, err = d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "fs.read", Action: "test"})
	require.NoError(t, err)

	_, err = caps.Revoke(context.Background(), "a1", []string{"fs.read"})
	require.NoError(t, err)

	_, err = d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "fs.read", Action: "test"})
	require.Error(t, err)
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindPermissionDenied, derr.Kind)
	require.Len(t, auditStore.entries, 2)
	require.Equal(t, audit.OutcomeFailure, auditStore.entries[1].Outcome)
}

func TestDispatcherUnknownTool(t *testing.T) {
	d, _, _, _, _ := newTestDispatcher(t)
	_, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "does.not.exist"})
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindUnknownTool, derr.Kind)
}

func TestDispatcherBadRequestMissingField(t *testing.T) {
	d, reg, _, _, _ := newTestDispatcher(t)
	tool := MakeTool("fs.write", "fs", "write a file", nil, RiskLow, false, true, 1000)
	tool.InputSchema = &Schema{RequiredFields: []string{"path"}}
	reg.RegisterTool(tool, func(ctx context.Context, input []byte) ([]byte, error) {
		return []byte(`{}`), nil
	})

	_, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "fs.write", Input: []byte(`{"content":"x"}`)})
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindBadRequest, derr.Kind)
}

func TestDispatcherConfirmationRequired(t *testing.T) {
	d, reg, caps, _, confirmations := newTestDispatcher(t)
	tool := MakeTool("proc.kill", "proc", "kill a process", nil, RiskCritical, false, false, 1000)
	require.True(t, tool.RequiresConfirmation)
	reg.RegisterTool(tool, func(ctx context.Context, input []byte) ([]byte, error) {
		return []byte(`{}`), nil
	})
	_ = caps

	_, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "proc.kill"})
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindConfirmationRequired, derr.Kind)

	token, err := confirmations.IssueToken("a1", "proc.kill")
	require.NoError(t, err)
	res, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "proc.kill", ConfirmationToken: token})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(res.Output))
}

func TestDispatcherAuditFailureSurfaced(t *testing.T) {
	d, reg, _, auditStore, _ := newTestDispatcher(t)
	reg.RegisterTool(MakeTool("noop", "core", "no-op", nil, RiskLow, true, true, 1000),
		func(ctx context.Context, input []byte) ([]byte, error) {
			return []byte(`{}`), nil
		})
	auditStore.failing = true

	_, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "noop"})
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindAuditFailure, derr.Kind)
}

func TestDispatcherToolFailure(t *testing.T) {
	d, reg, _, auditStore, _ := newTestDispatcher(t)
	reg.RegisterTool(MakeTool("fail.me", "core", "always fails", nil, RiskLow, true, true, 1000),
		func(ctx context.Context, input []byte) ([]byte, error) {
			return nil, errors.New("boom")
		})

	_, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "fail.me"})
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindToolFailure, derr.Kind)
	require.Len(t, auditStore.entries, 1)
	require.Equal(t, audit.OutcomeFailure, auditStore.entries[0].Outcome)
}

func TestDispatcherNoHandlerNoCluster(t *testing.T) {
	d, reg, _, _, _ := newTestDispatcher(t)
	reg.RegisterTool(MakeTool("remote.only", "remote", "no local handler", nil, RiskLow, true, true, 1000), nil)

	_, err := d.Execute(context.Background(), ExecuteRequest{AgentID: "a1", ToolName: "remote.only"})
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, ErrorKindUnknownTool, derr.Kind)
}
