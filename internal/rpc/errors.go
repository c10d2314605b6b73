// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"errors"
	"net/http"

	"github.com/MohaMehrzad/aios-core/internal/registry"
)

// writeDispatchError maps a registry.DispatchError (spec.md §7) to an
// HTTP status and machine-readable code. Any other error is treated as
// an opaque internal failure.
func writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *registry.DispatchError
	if !errors.As(err, &derr) {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch derr.Kind {
	case registry.ErrorKindUnknownTool, registry.ErrorKindNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case registry.ErrorKindBadRequest:
		status, code = http.StatusBadRequest, "BAD_REQUEST"
	case registry.ErrorKindPermissionDenied:
		status, code = http.StatusForbidden, "FORBIDDEN"
	case registry.ErrorKindConfirmationRequired:
		status, code = http.StatusPreconditionRequired, "CONFIRMATION_REQUIRED"
	case registry.ErrorKindTimeout:
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	case registry.ErrorKindToolFailure:
		status, code = http.StatusUnprocessableEntity, "TOOL_FAILURE"
	case registry.ErrorKindTransport:
		status, code = http.StatusBadGateway, "TRANSPORT"
	case registry.ErrorKindAuditFailure:
		status, code = http.StatusInternalServerError, "AUDIT_FAILURE"
	}
	writeError(w, r, status, code, derr.Error())
}
