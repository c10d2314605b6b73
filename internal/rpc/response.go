// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rpc is the chi-routed JSON/HTTP implementation of spec.md §6's
// RPC surface: the request/response contracts by which the orchestrator,
// tool registry, discovery, cluster, capability store, audit ledger,
// plugin manager, and trust root are reached from outside the process.
package rpc

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/MohaMehrzad/aios-core/internal/logging"
	"github.com/MohaMehrzad/aios-core/internal/middleware"
	"github.com/MohaMehrzad/aios-core/internal/validation"
)

// envelope is the standard response wrapper for every RPC endpoint,
// mirroring the teacher's api.APIResponse shape.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    *apiMeta    `json:"meta,omitempty"`
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type apiMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON writes data as a successful envelope with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	env := envelope{
		Success: true,
		Data:    data,
		Meta: &apiMeta{
			RequestID: middleware.GetRequestID(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.Error().Err(err).Msg("rpc: failed to encode response")
	}
}

// writeError writes a failure envelope with the given status and error code.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	env := envelope{
		Success: false,
		Error: &apiError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.Error().Err(err).Msg("rpc: failed to encode error response")
	}
}

// decodeJSON decodes the request body into v and then runs it through
// internal/validation's struct validator, so every handler's
// `validate:"..."` tags (spec.md invariants like ToolDefinition's
// required risk_level) are actually enforced instead of being decorative.
func decodeJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return verr
	}
	return nil
}
