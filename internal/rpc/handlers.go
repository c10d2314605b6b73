// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/adminauthz"
	"github.com/MohaMehrzad/aios-core/internal/audit"
	"github.com/MohaMehrzad/aios-core/internal/capability"
	"github.com/MohaMehrzad/aios-core/internal/cluster"
	"github.com/MohaMehrzad/aios-core/internal/discovery"
	"github.com/MohaMehrzad/aios-core/internal/logging"
	"github.com/MohaMehrzad/aios-core/internal/orchestrator"
	"github.com/MohaMehrzad/aios-core/internal/plugin"
	"github.com/MohaMehrzad/aios-core/internal/registry"
	"github.com/MohaMehrzad/aios-core/internal/remote"
	"github.com/MohaMehrzad/aios-core/internal/trust"
)

// Handler binds every control-plane component to its HTTP surface. All
// fields besides Registry and Dispatcher are optional: a deployment that
// disables discovery, clustering, or the plugin system simply leaves the
// matching routes unregistered (see Router.mount).
type Handler struct {
	Registry     *registry.Registry
	Dispatcher   *registry.Dispatcher
	Discovery    *discovery.Registry
	Cluster      *cluster.Manager
	Capabilities capability.Store
	AuditLog     audit.Store
	Plugins      *plugin.Manager
	Trust        *trust.Manager
	Remote       *remote.Executor
	Admin        *adminauthz.Service
	HeartbeatHub *cluster.HeartbeatHub
	Goals        *orchestrator.Store
}

// adminSubject identifies the caller of a management-plane operation for
// adminauthz's Casbin checks. A reverse proxy / mTLS terminator is
// expected to set this from the verified client certificate's CN; it
// defaults to "anonymous" so a misconfigured deployment fails closed
// against the Casbin policy rather than silently trusting every caller.
func adminSubject(r *http.Request) string {
	if s := r.Header.Get("X-AIOS-Subject"); s != "" {
		return s
	}
	return "anonymous"
}

// ---- Tool registry (spec.md §6 "Tool registry") ----

type executeRequest struct {
	AgentID           string `json:"agent_id" validate:"required"`
	Input             []byte `json:"input"`
	Reason            string `json:"reason"`
	ConfirmationToken string `json:"confirmation_token,omitempty"`
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body: "+err.Error())
		return
	}
	result, err := h.Dispatcher.Execute(r.Context(), registry.ExecuteRequest{
		AgentID:           req.AgentID,
		ToolName:          chiParam(r, "name"),
		Input:             req.Input,
		Action:            req.Reason,
		ConfirmationToken: req.ConfirmationToken,
	})
	if err != nil {
		writeDispatchError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Registry.ListTools(r.URL.Query().Get("namespace")))
}

func (h *Handler) GetTool(w http.ResponseWriter, r *http.Request) {
	name := chiParam(r, "name")
	tool, ok := h.Registry.GetTool(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "tool "+name+" is not registered")
		return
	}
	writeJSON(w, r, http.StatusOK, tool)
}

func (h *Handler) RegisterTool(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanRegisterTool(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	var def registry.ToolDefinition
	if err := decodeJSON(r, &def); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed tool definition: "+err.Error())
		return
	}
	if def.RiskLevel == registry.RiskCritical {
		def.RequiresConfirmation = true
	}
	h.Registry.RegisterTool(def, nil)
	writeJSON(w, r, http.StatusCreated, def)
}

func (h *Handler) DeregisterTool(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanRegisterTool(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	h.Registry.DeregisterTool(chiParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}

// ---- Discovery (spec.md §4.2) ----

type registerServiceRequest struct {
	Name          string            `json:"name" validate:"required"`
	Address       string            `json:"address" validate:"required"`
	TransportKind string            `json:"transport_kind"`
	Version       string            `json:"version"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) RegisterService(w http.ResponseWriter, r *http.Request) {
	var req registerServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed service record: "+err.Error())
		return
	}
	h.Discovery.Register(req.Name, req.Address, req.TransportKind, req.Version, req.Metadata)
	writeJSON(w, r, http.StatusCreated, nil)
}

func (h *Handler) DeregisterService(w http.ResponseWriter, r *http.Request) {
	h.Discovery.Deregister(chiParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HeartbeatService(w http.ResponseWriter, r *http.Request) {
	h.Discovery.Heartbeat(chiParam(r, "name"))
	writeJSON(w, r, http.StatusOK, nil)
}

func (h *Handler) LookupService(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.Discovery.Lookup(chiParam(r, "name"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no live record for "+chiParam(r, "name"))
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (h *Handler) ListServicesByKind(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Discovery.LookupByKind(r.URL.Query().Get("kind")))
}

// ---- Cluster (spec.md §4.3) ----

func (h *Handler) RegisterNode(w http.ResponseWriter, r *http.Request) {
	var node cluster.Node
	if err := decodeJSON(r, &node); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed cluster node: "+err.Error())
		return
	}
	h.Cluster.RegisterNode(node)
	writeJSON(w, r, http.StatusCreated, nil)
}

type heartbeatNodeRequest struct {
	CPUPercent  float64 `json:"cpu_pct"`
	MemPercent  float64 `json:"mem_pct"`
	ActiveTasks uint32  `json:"active_tasks"`
}

func (h *Handler) HeartbeatNode(w http.ResponseWriter, r *http.Request) {
	var req heartbeatNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed heartbeat: "+err.Error())
		return
	}
	h.Cluster.Heartbeat(chiParam(r, "id"), req.CPUPercent, req.MemPercent, req.ActiveTasks)
	writeJSON(w, r, http.StatusOK, nil)
}

func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Cluster.ListHealthy())
}

func (h *Handler) RouteToNode(w http.ResponseWriter, r *http.Request) {
	node, ok := h.Cluster.RouteToNode(r.URL.Query().Get("agent_kind"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no live node satisfies the requested agent kind")
		return
	}
	writeJSON(w, r, http.StatusOK, node)
}

// ---- Capability store (spec.md §4.5) ----

type grantRequest struct {
	AgentID      string   `json:"agent_id" validate:"required"`
	Capabilities []string `json:"capabilities" validate:"required"`
	Reason       string   `json:"reason"`
	DurationSecs int64    `json:"duration_secs"`
}

func (h *Handler) GrantCapability(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanGrantCapability(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed grant request: "+err.Error())
		return
	}
	expiresAt, err := h.Capabilities.Grant(r.Context(), req.AgentID, req.Capabilities, req.Reason, time.Duration(req.DurationSecs)*time.Second)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]interface{}{"expires_at": expiresAt})
}

type revokeRequest struct {
	AgentID      string   `json:"agent_id" validate:"required"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (h *Handler) RevokeCapability(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanRevokeCapability(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	var req revokeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed revoke request: "+err.Error())
		return
	}
	count, err := h.Capabilities.Revoke(r.Context(), req.AgentID, req.Capabilities)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"revoked": count})
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Capabilities.ListGrants(r.Context(), chiParam(r, "agent_id"))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, grants)
}

// ---- Audit ledger (spec.md §4.9) ----

func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.Authorize(r.Context(), adminSubject(r), adminauthz.ObjectAuditQuery, adminauthz.ActionRead); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	filter := audit.DefaultQueryFilter()
	q := r.URL.Query()
	filter.AgentID = q.Get("agent_id")
	filter.ToolName = q.Get("tool_name")
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	entries, err := h.AuditLog.Query(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

// ---- Plugin manager (spec.md §4.7) ----

func (h *Handler) CreatePlugin(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanCreatePlugin(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	var in plugin.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed plugin request: "+err.Error())
		return
	}
	result, err := h.Plugins.Create(in)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}
	if _, err := h.Plugins.ScanAndRegister(h.Registry); err != nil {
		logging.Warn().Err(err).Msg("rpc: failed to reconcile plugin registry after create")
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (h *Handler) CreatePluginFromTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanCreatePlugin(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	result, err := h.Plugins.FromTemplate(chiParam(r, "template"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if _, err := h.Plugins.ScanAndRegister(h.Registry); err != nil {
		logging.Warn().Err(err).Msg("rpc: failed to reconcile plugin registry after template instantiation")
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (h *Handler) ListPlugins(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Plugins.List()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (h *Handler) DeletePlugin(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanDeletePlugin(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	name := chiParam(r, "name")
	deleted, err := h.Plugins.Delete(name)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	h.Registry.DeregisterTool("plugin." + name)
	writeJSON(w, r, http.StatusOK, map[string][]string{"deleted": deleted})
}

// ---- Trust root (spec.md §4.8) ----

func (h *Handler) RotateTrust(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.CanRotateCerts(r.Context(), adminSubject(r)); err != nil {
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}
	bundle, err := h.Trust.Rotate(chiParam(r, "service"))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, bundle)
}

// ---- Orchestrator (spec.md §6 "Orchestrator") ----

type submitGoalRequest struct {
	Description string            `json:"description" validate:"required"`
	Priority    int32             `json:"priority"`
	Source      string            `json:"source"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) SubmitGoal(w http.ResponseWriter, r *http.Request) {
	var req submitGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed goal submission: "+err.Error())
		return
	}
	goalID, err := h.Goals.Submit(r.Context(), req.Description, req.Priority, req.Source, req.Tags, req.Metadata)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"goal_id": goalID})
}

func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	id := chiParam(r, "id")
	goal, ok := h.Goals.Get(r.Context(), id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no goal with id "+id)
		return
	}
	writeJSON(w, r, http.StatusOK, goal)
}

func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := orchestrator.Filter{
		Status: orchestrator.Status(q.Get("status")),
		Source: q.Get("source"),
	}
	writeJSON(w, r, http.StatusOK, h.Goals.List(r.Context(), filter))
}

// ---- Remote goal submission (spec.md §6 "Orchestrator") ----

type submitRemoteGoalRequest struct {
	Description string `json:"description" validate:"required"`
	Priority    int32  `json:"priority"`
	Source      string `json:"source"`
}

func (h *Handler) SubmitRemoteGoal(w http.ResponseWriter, r *http.Request) {
	var req submitRemoteGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed goal submission: "+err.Error())
		return
	}
	goalID, err := h.Remote.SubmitRemoteGoal(r.Context(), chiParam(r, "address"), req.Description, req.Priority, req.Source)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "TRANSPORT", err.Error())
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"goal_id": goalID})
}
