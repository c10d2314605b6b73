// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/MohaMehrzad/aios-core/internal/logging"
	"github.com/MohaMehrzad/aios-core/internal/metrics"
	"github.com/MohaMehrzad/aios-core/internal/registry"
	"github.com/MohaMehrzad/aios-core/internal/validation"
)

// Manager creates, lists, and deletes plugin tools persisted as
// <name>.py script + <name>.meta.json metadata pairs under dir, the Go
// equivalent of the original source's flat PLUGIN_DIR layout.
type Manager struct {
	dir          string
	riskRejectAt float64
}

// NewManager builds a Manager rooted at dir. riskRejectAt defaults to 70,
// matching the original validator's safe threshold.
func NewManager(dir string, riskRejectAt float64) *Manager {
	if dir == "" {
		dir = "data/plugins"
	}
	if riskRejectAt <= 0 {
		riskRejectAt = 70
	}
	return &Manager{dir: dir, riskRejectAt: riskRejectAt}
}

// CreateInput is the request body for Create.
type CreateInput struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description"`
	Code         string   `json:"code" validate:"required"`
	Capabilities []string `json:"capabilities"`
	Dependencies []string `json:"dependencies"`
	Author       string   `json:"author"`
	TimeoutMS    int32    `json:"timeout_ms"`
}

// CreateResult is returned by Create.
type CreateResult struct {
	ToolName  string           `json:"tool_name"`
	Validated ValidationResult `json:"validated"`
}

// Create writes a plugin's script and metadata to disk after static risk
// validation; code scoring riskRejectAt or above is rejected outright,
// matching spec.md §4.7.1's thresholds.
func (m *Manager) Create(in CreateInput) (CreateResult, error) {
	if !isValidPluginName(in.Name) {
		return CreateResult{}, fmt.Errorf("plugin: invalid name %q: must be non-empty, alphanumeric + underscore only", in.Name)
	}

	result := ValidateCode(in.Code)
	metrics.PluginRiskScore.Observe(float64(result.RiskScore))
	if float64(result.RiskScore) >= m.riskRejectAt {
		logging.Warn().Str("plugin_name", in.Name).Uint32("risk_score", result.RiskScore).
			Msg("plugin creation rejected by static risk analysis")
		return CreateResult{Validated: result}, fmt.Errorf("plugin: code for %q scored risk %d, at or above reject threshold %.0f", in.Name, result.RiskScore, m.riskRejectAt)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return CreateResult{}, fmt.Errorf("plugin: create plugin directory: %w", err)
	}

	timeoutMS := in.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = 30000
	}
	toolName := "plugin." + in.Name
	meta := Metadata{
		ToolName:     toolName,
		Description:  in.Description,
		Capabilities: in.Capabilities,
		Dependencies: in.Dependencies,
		Author:       in.Author,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		TimeoutMS:    timeoutMS,
	}
	if verr := validation.ValidateStruct(&meta); verr != nil {
		return CreateResult{}, fmt.Errorf("plugin: invalid metadata: %w", verr)
	}

	scriptPath := m.scriptPath(in.Name)
	if err := os.WriteFile(scriptPath, []byte(in.Code), 0o644); err != nil {
		return CreateResult{}, fmt.Errorf("plugin: write script: %w", err)
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return CreateResult{}, fmt.Errorf("plugin: marshal metadata: %w", err)
	}
	if err := os.WriteFile(m.metaPath(in.Name), metaBytes, 0o644); err != nil {
		return CreateResult{}, fmt.Errorf("plugin: write metadata: %w", err)
	}

	logging.Info().Str("plugin_name", in.Name).Str("tool_name", toolName).Msg("plugin created")
	return CreateResult{ToolName: toolName, Validated: result}, nil
}

// FromTemplate instantiates a built-in template as a new plugin.
func (m *Manager) FromTemplate(templateName string) (CreateResult, error) {
	tmpl, ok := findTemplate(templateName)
	if !ok {
		names := make([]string, 0, len(templates))
		for _, t := range templates {
			names = append(names, t.name)
		}
		return CreateResult{}, fmt.Errorf("plugin: unknown template %q, available: %s", templateName, strings.Join(names, ", "))
	}
	return m.Create(CreateInput{
		Name:         tmpl.name,
		Description:  tmpl.description,
		Code:         tmpl.code,
		Capabilities: tmpl.capabilities,
	})
}

// ListEntry is one row of List's output.
type ListEntry struct {
	ToolName     string   `json:"tool_name"`
	Description  string   `json:"description"`
	ScriptPath   string   `json:"script_path"`
	Dependencies []string `json:"dependencies"`
	CreatedAt    string   `json:"created_at"`
}

// List scans dir for installed plugins.
func (m *Manager) List() ([]ListEntry, error) {
	if _, err := os.Stat(m.dir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("plugin: read plugin directory: %w", err)
	}

	var out []ListEntry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			logging.Warn().Str("file", name).Err(err).Msg("failed to read plugin metadata")
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(contents, &meta); err != nil {
			logging.Warn().Str("file", name).Err(err).Msg("failed to parse plugin metadata")
			continue
		}
		shortName := strings.TrimPrefix(meta.ToolName, "plugin.")
		out = append(out, ListEntry{
			ToolName:     meta.ToolName,
			Description:  meta.Description,
			ScriptPath:   m.scriptPath(shortName),
			Dependencies: meta.Dependencies,
			CreatedAt:    meta.CreatedAt,
		})
	}
	return out, nil
}

// Delete removes a plugin's script and metadata files.
func (m *Manager) Delete(name string) ([]string, error) {
	if !isValidPluginName(name) {
		return nil, fmt.Errorf("plugin: invalid name %q: must be non-empty, alphanumeric + underscore only", name)
	}

	var deleted []string
	scriptPath := m.scriptPath(name)
	if fileExists(scriptPath) {
		if err := os.Remove(scriptPath); err != nil {
			return nil, fmt.Errorf("plugin: delete script %s: %w", scriptPath, err)
		}
		deleted = append(deleted, scriptPath)
	}
	metaPath := m.metaPath(name)
	if fileExists(metaPath) {
		if err := os.Remove(metaPath); err != nil {
			return nil, fmt.Errorf("plugin: delete metadata %s: %w", metaPath, err)
		}
		deleted = append(deleted, metaPath)
	}
	if len(deleted) == 0 {
		return nil, fmt.Errorf("plugin: %q not found in %s", name, m.dir)
	}
	logging.Info().Str("plugin_name", name).Strs("deleted_files", deleted).Msg("plugin deleted")
	return deleted, nil
}

// ScanAndRegister loads every installed plugin's metadata and registers
// it in reg, binding each tool to its own HandlerFor(name) invocation
// shim so the registry's resolve step reaches the right script per
// plugin name, not a single shared handler.
func (m *Manager) ScanAndRegister(reg *registry.Registry) (int, error) {
	entries, err := m.List()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		shortName := strings.TrimPrefix(e.ToolName, "plugin.")
		metaBytes, err := os.ReadFile(m.metaPath(shortName))
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			continue
		}
		def := registry.MakeTool(e.ToolName, "plugin", e.Description, meta.Capabilities, registry.RiskMedium, false, false, int64(meta.TimeoutMS))
		reg.RegisterTool(def, m.HandlerFor(shortName))
	}
	if len(entries) > 0 {
		logging.Info().Int("count", len(entries)).Str("dir", m.dir).Msg("loaded plugin tools")
	}
	return len(entries), nil
}

func (m *Manager) scriptPath(name string) string {
	return filepath.Join(m.dir, name+".py")
}

func (m *Manager) metaPath(name string) string {
	return filepath.Join(m.dir, name+".meta.json")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isValidPluginName enforces the original source's name constraint:
// non-empty, alphanumeric and underscore only.
func isValidPluginName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}
