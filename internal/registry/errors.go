// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import "fmt"

// ErrorKind is the dispatcher's error taxonomy (spec.md §7), each with a
// fixed propagation policy the dispatcher itself implements.
type ErrorKind string

const (
	ErrorKindUnknownTool          ErrorKind = "unknown_tool"
	ErrorKindBadRequest           ErrorKind = "bad_request"
	ErrorKindPermissionDenied     ErrorKind = "permission_denied"
	ErrorKindConfirmationRequired ErrorKind = "confirmation_required"
	ErrorKindTimeout              ErrorKind = "timeout"
	ErrorKindToolFailure          ErrorKind = "tool_failure"
	ErrorKindTransport            ErrorKind = "transport"
	ErrorKindAuditFailure         ErrorKind = "audit_failure"
	ErrorKindNotFound             ErrorKind = "not_found"
)

// DispatchError is the typed error returned by Dispatcher.Execute, so
// callers can errors.As to inspect Kind instead of matching on strings.
type DispatchError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("registry: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("registry: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, message string, cause error) *DispatchError {
	return &DispatchError{Kind: kind, Message: message, Cause: cause}
}
