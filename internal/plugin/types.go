// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plugin implements the runtime-extensible tool system: plugins
// are scripts stored under a plugin directory with JSON metadata, each
// exposing a single entry point that receives/returns JSON over
// stdin/stdout, dispatched through the same registry.Dispatcher pipeline
// as any built-in tool.
package plugin

// Metadata describes one installed plugin (spec.md §3 PluginMetadata).
type Metadata struct {
	ToolName     string   `json:"tool_name" validate:"required"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Dependencies []string `json:"dependencies"`
	Author       string   `json:"author"`
	CreatedAt    string   `json:"created_at"`
	TimeoutMS    int32    `json:"timeout_ms"`
}

// TriggerKind identifies how a PluginTrigger is evaluated.
type TriggerKind string

const (
	TriggerCron            TriggerKind = "cron"
	TriggerFileWatch       TriggerKind = "file_watch"
	TriggerLogPattern      TriggerKind = "log_pattern"
	TriggerMetricThreshold TriggerKind = "metric_threshold"
)

// Trigger is a registered condition that fires a plugin when satisfied.
type Trigger struct {
	ID          string      `json:"id"`
	PluginName  string      `json:"plugin_name"`
	Kind        TriggerKind `json:"type"`
	Expression  string      `json:"expression,omitempty"`   // cron
	Path        string      `json:"path,omitempty"`         // file_watch, log_pattern
	Pattern     string      `json:"pattern,omitempty"`      // log_pattern
	Metric      string      `json:"metric,omitempty"`       // metric_threshold
	Operator    string      `json:"operator,omitempty"`     // metric_threshold
	Threshold   float64     `json:"threshold,omitempty"`    // metric_threshold
	Enabled     bool        `json:"enabled"`
	LastFired   int64       `json:"last_fired,omitempty"`
	lastChecked int64
	logOffset   int64 // log_pattern: byte offset already scanned in Path
}
