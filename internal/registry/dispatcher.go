// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MohaMehrzad/aios-core/internal/audit"
	"github.com/MohaMehrzad/aios-core/internal/auth"
	"github.com/MohaMehrzad/aios-core/internal/capability"
	"github.com/MohaMehrzad/aios-core/internal/cluster"
	"github.com/MohaMehrzad/aios-core/internal/logging"
	"github.com/MohaMehrzad/aios-core/internal/metrics"
)

// RemoteExecutor dispatches a tool invocation to a cluster peer. Satisfied
// by *remote.Executor; declared here (rather than imported) so registry
// does not need to know remote's transport details, only that it can run
// a tool on a node.
type RemoteExecutor interface {
	ExecuteRemoteTool(ctx context.Context, node cluster.Node, toolName string, input []byte) ([]byte, error)
}

// ExecuteRequest is one dispatch call (spec.md §4.4).
type ExecuteRequest struct {
	AgentID           string
	ToolName          string
	Input             []byte
	Action            string
	ConfirmationToken string
}

// ExecuteResult is the outcome of a successful dispatch.
type ExecuteResult struct {
	Output       []byte
	DurationMS   int64
	RemoteNodeID string
}

// Dispatcher is the capability-gated policy enforcement point: resolve ->
// validate -> authorize -> confirm -> execute -> audit (spec.md §4.4).
type Dispatcher struct {
	registry      *Registry
	capabilities  capability.Store
	auditLog      audit.Store
	confirmations *auth.ConfirmationManager
	clusterMgr    *cluster.Manager
	remote        RemoteExecutor

	defaultTimeout time.Duration
	defaultRate    rate.Limit

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewDispatcher wires a Dispatcher. clusterMgr and remote may be nil when
// cluster mode is disabled: RouteToNode is then never consulted and any
// tool without a bound local handler resolves as ErrorKindUnknownTool.
func NewDispatcher(
	reg *Registry,
	capabilities capability.Store,
	auditLog audit.Store,
	confirmations *auth.ConfirmationManager,
	clusterMgr *cluster.Manager,
	remote RemoteExecutor,
	defaultTimeout time.Duration,
	defaultRatePerSec float64,
) *Dispatcher {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	if defaultRatePerSec <= 0 {
		defaultRatePerSec = 10
	}
	return &Dispatcher{
		registry:       reg,
		capabilities:   capabilities,
		auditLog:       auditLog,
		confirmations:  confirmations,
		clusterMgr:     clusterMgr,
		remote:         remote,
		defaultTimeout: defaultTimeout,
		defaultRate:    rate.Limit(defaultRatePerSec),
		limiters:       make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the per-tool token bucket, creating it on first use.
func (d *Dispatcher) limiterFor(toolName string) *rate.Limiter {
	d.limiterMu.Lock()
	defer d.limiterMu.Unlock()
	l, ok := d.limiters[toolName]
	if !ok {
		l = rate.NewLimiter(d.defaultRate, int(d.defaultRate)+1)
		d.limiters[toolName] = l
	}
	return l
}

// Execute runs the full dispatch pipeline for req.
func (d *Dispatcher) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	start := time.Now()

	// 1. resolve
	tool, ok := d.registry.GetTool(req.ToolName)
	if !ok {
		return d.fail(ctx, req, start, "", newError(ErrorKindUnknownTool, fmt.Sprintf("tool %q is not registered", req.ToolName), nil))
	}

	// 2. validate
	if err := validateInput(tool, req.Input); err != nil {
		return d.fail(ctx, req, start, "", err)
	}

	// 3. authorize
	if len(tool.RequiredCapabilities) > 0 {
		active, err := d.capabilities.ActiveCapabilities(ctx, req.AgentID)
		if err != nil {
			return d.fail(ctx, req, start, "", newError(ErrorKindTransport, "capability lookup failed", err))
		}
		for _, c := range tool.RequiredCapabilities {
			if !active[c] {
				return d.fail(ctx, req, start, "", newError(ErrorKindPermissionDenied,
					fmt.Sprintf("agent %q lacks capability %q", req.AgentID, c), nil))
			}
		}
	}

	// 4. confirm
	if tool.RequiresConfirmation {
		if req.ConfirmationToken == "" {
			return d.fail(ctx, req, start, "", newError(ErrorKindConfirmationRequired,
				fmt.Sprintf("tool %q requires a confirmation token", req.ToolName), nil))
		}
		if _, err := d.confirmations.Verify(req.ConfirmationToken, req.AgentID, req.ToolName); err != nil {
			return d.fail(ctx, req, start, "", newError(ErrorKindConfirmationRequired, "confirmation token invalid", err))
		}
	}

	// rate limit, after authorization so unauthorized callers never consume
	// a tool's shared budget.
	if !d.limiterFor(req.ToolName).Allow() {
		return d.fail(ctx, req, start, "", newError(ErrorKindToolFailure, fmt.Sprintf("tool %q is rate limited", req.ToolName), nil))
	}

	timeout := d.defaultTimeout
	if tool.TimeoutMS > 0 {
		timeout = time.Duration(tool.TimeoutMS) * time.Millisecond
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 5. execute
	output, remoteNodeID, execErr := d.invoke(execCtx, tool, req)

	durationMS := time.Since(start).Milliseconds()

	// 6. audit, always
	outcome := audit.OutcomeSuccess
	errMsg := ""
	if execErr != nil {
		outcome = audit.OutcomeFailure
		errMsg = execErr.Error()
	}
	entry := &audit.Entry{
		AgentID:      req.AgentID,
		ToolName:     req.ToolName,
		Action:       req.Action,
		Outcome:      outcome,
		DurationMS:   durationMS,
		InputDigest:  digest(req.Input),
		OutputDigest: digest(output),
		ErrorMessage: errMsg,
		RemoteNodeID: remoteNodeID,
	}
	if auditErr := d.auditLog.Save(ctx, entry); auditErr != nil {
		metrics.AuditWriteFailures.Inc()
		logging.Error().Err(auditErr).Str("tool_name", req.ToolName).Str("agent_id", req.AgentID).
			Msg("audit ledger write failed")
		metrics.DispatchTotal.WithLabelValues(req.ToolName, "audit_failure").Inc()
		return ExecuteResult{}, newError(ErrorKindAuditFailure, "tool executed but audit write failed", auditErr)
	}

	metrics.DispatchDuration.WithLabelValues(req.ToolName).Observe(time.Since(start).Seconds())
	if execErr != nil {
		metrics.DispatchTotal.WithLabelValues(req.ToolName, "failure").Inc()
		return ExecuteResult{}, execErr
	}
	metrics.DispatchTotal.WithLabelValues(req.ToolName, "success").Inc()
	return ExecuteResult{Output: output, DurationMS: durationMS, RemoteNodeID: remoteNodeID}, nil
}

// invoke runs the tool body locally if a handler is bound, or routes it to
// a cluster peer via requiredAgentKind == tool.Namespace otherwise.
func (d *Dispatcher) invoke(ctx context.Context, tool ToolDefinition, req ExecuteRequest) (output []byte, remoteNodeID string, err error) {
	if handler, ok := d.registry.getHandler(tool.Name); ok {
		out, herr := handler(ctx, req.Input)
		if herr != nil {
			if ctx.Err() != nil {
				return nil, "", newError(ErrorKindTimeout, "tool execution timed out", ctx.Err())
			}
			return nil, "", newError(ErrorKindToolFailure, "tool handler returned an error", herr)
		}
		return out, "", nil
	}

	if d.clusterMgr == nil || !d.clusterMgr.Enabled() || d.remote == nil {
		return nil, "", newError(ErrorKindUnknownTool, fmt.Sprintf("tool %q has no local handler and cluster routing is disabled", tool.Name), nil)
	}

	node, found := d.clusterMgr.RouteToNode(tool.Namespace)
	if !found {
		return nil, "", newError(ErrorKindNotFound, fmt.Sprintf("no live cluster node can serve tool %q", tool.Name), nil)
	}
	out, rerr := d.remote.ExecuteRemoteTool(ctx, node, tool.Name, req.Input)
	if rerr != nil {
		if ctx.Err() != nil {
			return nil, node.NodeID, newError(ErrorKindTimeout, "remote tool execution timed out", ctx.Err())
		}
		return nil, node.NodeID, newError(ErrorKindTransport, "remote tool execution failed", rerr)
	}
	return out, node.NodeID, nil
}

// fail records a terminal pre-execution error: still audited (step 6 runs
// unconditionally for every dispatch that resolved past parsing req
// itself), so permission-denied and similar rejections remain visible in
// the ledger even though the tool body never ran.
func (d *Dispatcher) fail(ctx context.Context, req ExecuteRequest, start time.Time, remoteNodeID string, derr *DispatchError) (ExecuteResult, error) {
	durationMS := time.Since(start).Milliseconds()
	entry := &audit.Entry{
		AgentID:      req.AgentID,
		ToolName:     req.ToolName,
		Action:       req.Action,
		Outcome:      audit.OutcomeFailure,
		DurationMS:   durationMS,
		InputDigest:  digest(req.Input),
		ErrorMessage: derr.Error(),
		RemoteNodeID: remoteNodeID,
	}
	if auditErr := d.auditLog.Save(ctx, entry); auditErr != nil {
		metrics.AuditWriteFailures.Inc()
		logging.Error().Err(auditErr).Str("tool_name", req.ToolName).Msg("audit ledger write failed for rejected dispatch")
		metrics.DispatchTotal.WithLabelValues(req.ToolName, "audit_failure").Inc()
		return ExecuteResult{}, newError(ErrorKindAuditFailure, "dispatch rejected and audit write also failed", auditErr)
	}
	metrics.DispatchTotal.WithLabelValues(req.ToolName, string(derr.Kind)).Inc()
	return ExecuteResult{}, derr
}

// validateInput checks req against tool's input schema, if any.
func validateInput(tool ToolDefinition, input []byte) *DispatchError {
	if tool.InputSchema == nil || len(tool.InputSchema.RequiredFields) == 0 {
		return nil
	}
	if len(input) == 0 {
		return newError(ErrorKindBadRequest, "input is required for this tool", nil)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(input, &decoded); err != nil {
		return newError(ErrorKindBadRequest, "input is not valid JSON", err)
	}
	for _, field := range tool.InputSchema.RequiredFields {
		v, present := decoded[field]
		if !present || v == nil {
			return newError(ErrorKindBadRequest, fmt.Sprintf("missing required field %q", field), nil)
		}
	}
	return nil
}

// digest returns the hex SHA-256 of b, or "" for empty input - recorded in
// the audit ledger in place of raw payloads.
func digest(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
