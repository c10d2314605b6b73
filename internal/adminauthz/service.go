// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package adminauthz gates management-plane operations (granting and
// revoking capabilities, creating/deleting plugins, rotating trust
// material) behind a Casbin RBAC model. This is deliberately separate
// from the per-tool capability model in internal/capability: capability
// grants answer "can this agent invoke this tool right now", adminauthz
// answers "can this human/service manage the control plane itself".
package adminauthz

import (
	"context"
	"fmt"
)

// Management-plane object identifiers used as the Casbin "object" in
// Enforce(subject, object, action) checks.
const (
	ObjectCapabilityGrant = "sec.grant"
	ObjectCapabilityRevoke = "sec.revoke"
	ObjectPluginCreate    = "plugin.create"
	ObjectPluginDelete    = "plugin.delete"
	ObjectCertRotate      = "sec.cert_rotate"
	ObjectAuditQuery      = "sec.audit_query"
	ObjectToolRegister    = "registry.register"

	ActionExecute = "execute"
	ActionRead    = "read"
)

// Service is a thin wrapper over Enforcer exposing the control-plane
// management checks by name instead of raw (subject, object, action)
// tuples, so callers in internal/rpc don't need to know the policy
// vocabulary.
type Service struct {
	enforcer *Enforcer
}

// NewService wraps an already-constructed Enforcer.
func NewService(enforcer *Enforcer) *Service {
	return &Service{enforcer: enforcer}
}

// Authorize checks whether subject may perform action on object, wrapping
// the underlying error with context identifying the attempted operation.
func (s *Service) Authorize(_ context.Context, subject, object, action string) error {
	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return fmt.Errorf("adminauthz: enforce %s on %s/%s: %w", subject, object, action, err)
	}
	if !allowed {
		return fmt.Errorf("adminauthz: %s is not permitted to %s %s", subject, action, object)
	}
	return nil
}

// CanGrantCapability reports whether subject may call sec.grant.
func (s *Service) CanGrantCapability(ctx context.Context, subject string) error {
	return s.Authorize(ctx, subject, ObjectCapabilityGrant, ActionExecute)
}

// CanRevokeCapability reports whether subject may call sec.revoke.
func (s *Service) CanRevokeCapability(ctx context.Context, subject string) error {
	return s.Authorize(ctx, subject, ObjectCapabilityRevoke, ActionExecute)
}

// CanCreatePlugin reports whether subject may call plugin.create.
func (s *Service) CanCreatePlugin(ctx context.Context, subject string) error {
	return s.Authorize(ctx, subject, ObjectPluginCreate, ActionExecute)
}

// CanDeletePlugin reports whether subject may call plugin.delete.
func (s *Service) CanDeletePlugin(ctx context.Context, subject string) error {
	return s.Authorize(ctx, subject, ObjectPluginDelete, ActionExecute)
}

// CanRotateCerts reports whether subject may trigger trust root rotation.
func (s *Service) CanRotateCerts(ctx context.Context, subject string) error {
	return s.Authorize(ctx, subject, ObjectCertRotate, ActionExecute)
}

// CanRegisterTool reports whether subject may register or deregister a
// tool definition directly (as opposed to it arriving via plugin creation
// or a built-in module's startup registration).
func (s *Service) CanRegisterTool(ctx context.Context, subject string) error {
	return s.Authorize(ctx, subject, ObjectToolRegister, ActionExecute)
}
