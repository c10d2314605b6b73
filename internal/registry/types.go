// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry is the in-memory tool catalog and the capability-gated
// dispatcher that is the central policy enforcement point of aiOS
// (spec.md §4.4): resolve -> validate -> authorize -> confirm -> execute
// -> audit.
package registry

import "context"

// RiskLevel controls whether a tool requires explicit confirmation before
// executing.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Schema is a minimal presence-check validator for a tool's input JSON,
// deliberately lighter than a full JSON Schema implementation: no
// JSON-schema library appears anywhere in the retrieved example pack, and
// pulling one in for a handful of required-field checks would be a new,
// ungrounded dependency. RequiredFields names top-level keys that must be
// present (and non-null) in the decoded input object.
type Schema struct {
	RequiredFields []string `json:"required_fields,omitempty"`
}

// ToolDefinition is a registry entry (spec.md §3 ToolDefinition).
type ToolDefinition struct {
	Name                 string    `json:"name" validate:"required"`
	Namespace            string    `json:"namespace" validate:"required"`
	Version              string    `json:"version"`
	Description          string    `json:"description"`
	InputSchema          *Schema   `json:"input_schema,omitempty"`
	OutputSchema         *Schema   `json:"output_schema,omitempty"`
	RequiredCapabilities []string  `json:"required_capabilities,omitempty"`
	RiskLevel            RiskLevel `json:"risk_level" validate:"required,oneof=low medium high critical"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	Idempotent           bool      `json:"idempotent"`
	Reversible           bool      `json:"reversible"`
	TimeoutMS            int64     `json:"timeout_ms"`
	RollbackTool         string    `json:"rollback_tool,omitempty"`
}

// MakeTool builds a ToolDefinition with the requires_confirmation
// invariant enforced: true iff risk is critical, unless explicitly
// overridden afterward by the caller. Mirrors the original source's
// registry::make_tool helper.
func MakeTool(name, namespace, description string, requiredCapabilities []string, risk RiskLevel, idempotent, reversible bool, timeoutMS int64) ToolDefinition {
	return ToolDefinition{
		Name:                 name,
		Namespace:            namespace,
		Version:              "1.0.0",
		Description:          description,
		RequiredCapabilities: requiredCapabilities,
		RiskLevel:            risk,
		RequiresConfirmation: risk == RiskCritical,
		Idempotent:           idempotent,
		Reversible:           reversible,
		TimeoutMS:            timeoutMS,
	}
}

// Handler is a tool body: input JSON in, output JSON out, or an error.
// Plugin tools satisfy the same contract through an out-of-process
// invocation shim (internal/plugin).
type Handler func(ctx context.Context, input []byte) ([]byte, error)
