// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"fmt"
	"sync"

	"github.com/MohaMehrzad/aios-core/internal/logging"
)

// Registry is the in-memory name -> ToolDefinition catalog (spec.md §4.4).
// RegisterTool overwrites by name; DeregisterTool removes; ListTools
// filters by namespace (empty = all). Readers take the read lock; callers
// never hold it across a tool invocation.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]ToolDefinition
	handlers map[string]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:    make(map[string]ToolDefinition),
		handlers: make(map[string]Handler),
	}
}

// RegisterTool inserts or overwrites def, binding it to handler. A nil
// handler marks the tool as remote-only: local dispatch always routes it
// through the cluster/remote executor path.
func (r *Registry) RegisterTool(def ToolDefinition, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
	if handler != nil {
		r.handlers[def.Name] = handler
	} else {
		delete(r.handlers, def.Name)
	}
	logging.Debug().Str("tool_name", def.Name).Str("namespace", def.Namespace).
		Bool("has_local_handler", handler != nil).Msg("tool registered")
}

// DeregisterTool removes a tool and its handler, if present.
func (r *Registry) DeregisterTool(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.handlers, name)
}

// GetTool returns the ToolDefinition registered under name.
func (r *Registry) GetTool(name string) (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// getHandler returns the in-process handler for name, if one is bound.
func (r *Registry) getHandler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// ListTools returns every tool in namespace, or every tool if namespace
// is empty.
func (r *Registry) ListTools(namespace string) []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.tools))
	for _, def := range r.tools {
		if namespace == "" || def.Namespace == namespace {
			out = append(out, def)
		}
	}
	return out
}

// Count returns the total number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// MustRegisterTool panics if name is already registered with a different
// definition - intended for seed-time registration of built-in tool
// modules at startup, where a collision indicates a packaging bug rather
// than a runtime condition to recover from.
func (r *Registry) MustRegisterTool(def ToolDefinition, handler Handler) {
	if existing, ok := r.GetTool(def.Name); ok && existing.Namespace != def.Namespace {
		panic(fmt.Sprintf("registry: tool %q already registered under namespace %q", def.Name, existing.Namespace))
	}
	r.RegisterTool(def, handler)
}
