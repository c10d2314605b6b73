// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with user-friendly error messages, used by
// internal/rpc's decodeJSON to enforce the `validate:"..."` struct tags
// already declared on the control plane's request/response types
// (registry.ToolDefinition, plugin.Metadata, internal/config's Config,
// and internal/rpc's request bodies) rather than leaving them decorative.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Comprehensive error translation to human-readable messages
//   - APIError conversion matching the RPC surface's envelope error format
//   - WithRequiredStructEnabled option (v11+ compatibility)
//
// # Quick Start
//
//	type executeRequest struct {
//	    AgentID string `json:"agent_id" validate:"required"`
//	    Reason  string `json:"reason"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req executeRequest
//	    if err := decodeJSON(r, &req); err != nil {
//	        // decodeJSON already decodes and validates; err may be a
//	        // *validation.RequestValidationError
//	        writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
//	        return
//	    }
//
//	    // proceed with valid request
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values (e.g.
//     registry.ToolDefinition's risk_level: `oneof=low medium high critical`)
//
// # Error Types
//
// ValidationError represents a single field validation failure:
//
//	type ValidationError struct {
//	    Field()   string      // Struct field name
//	    Tag()     string      // Validation tag that failed
//	    Param()   string      // Tag parameter (e.g., "100" for max=100)
//	    Value()   interface{} // Actual value that failed
//	    Error()   string      // Human-readable message
//	}
//
// RequestValidationError aggregates multiple field errors:
//
//	type RequestValidationError struct {
//	    Errors() []ValidationError
//	    Error()  string           // Combined message
//	    ToAPIError() *APIError    // Convert to API error format
//	}
//
// # Error Message Translation
//
// Human-readable messages are generated for common validation tags:
//
//	required   -> "AgentID is required"
//	min=3      -> "Name must be at least 3 characters"
//	max=100    -> "Description must be at most 100 characters"
//	gte=1      -> "TimeoutMS must be greater than or equal to 1"
//	oneof=a b  -> "RiskLevel must be one of: a b"
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # See Also
//
//   - internal/rpc: decodeJSON runs every decoded body through this package
//   - internal/config: Load validates the assembled Config before returning it
//   - github.com/go-playground/validator/v10: Underlying library
package validation
