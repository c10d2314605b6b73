// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cluster implements cross-node task routing (spec.md §4.3):
// remote nodes register with their agent kinds and load telemetry, send
// periodic heartbeats, and the local node picks the least-loaded live
// candidate for a given required agent kind via RouteToNode.
package cluster

import (
	"strings"
	"sync"
	"time"
)

// Node is a remote cluster member's last-known state.
type Node struct {
	NodeID        string            `json:"node_id"`
	Hostname      string            `json:"hostname"`
	Address       string            `json:"address"`
	AgentKinds    []string          `json:"agent_kinds"`
	CPUPercent    float64           `json:"cpu_pct"`
	MemPercent    float64           `json:"mem_pct"`
	ActiveTasks   uint32            `json:"active_tasks"`
	MaxTasks      uint32            `json:"max_tasks"`
	RegisteredAt  time.Time         `json:"registered_at"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Manager tracks cluster node membership and routes tasks to the
// least-loaded live node matching a required agent kind.
type Manager struct {
	mu               sync.RWMutex
	nodes            map[string]Node
	localNodeID      string
	heartbeatTimeout time.Duration
	enabled          bool
}

// NewManager creates a Manager for the local node identified by
// localNodeID. heartbeatTimeout defaults to 30s, matching the original
// cluster manager's heartbeat_timeout_secs.
func NewManager(localNodeID string, heartbeatTimeout time.Duration, enabled bool) *Manager {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 30 * time.Second
	}
	return &Manager{
		nodes:            make(map[string]Node),
		localNodeID:      localNodeID,
		heartbeatTimeout: heartbeatTimeout,
		enabled:          enabled,
	}
}

// Enabled reports whether cluster mode is active.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// LocalNodeID returns the identifier of the node this Manager runs on.
func (m *Manager) LocalNodeID() string {
	return m.localNodeID
}

// RegisterNode inserts or overwrites a node's state.
func (m *Manager) RegisterNode(node Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if node.RegisteredAt.IsZero() {
		node.RegisteredAt = time.Now()
	}
	if node.LastHeartbeat.IsZero() {
		node.LastHeartbeat = time.Now()
	}
	m.nodes[node.NodeID] = node
}

// Heartbeat refreshes a node's load telemetry and heartbeat timestamp.
// No-op if the node is not registered.
func (m *Manager) Heartbeat(nodeID string, cpuPercent, memPercent float64, activeTasks uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[nodeID]
	if !ok {
		return
	}
	node.LastHeartbeat = time.Now()
	node.CPUPercent = cpuPercent
	node.MemPercent = memPercent
	node.ActiveTasks = activeTasks
	m.nodes[nodeID] = node
}

// RemoveNode deregisters a node.
func (m *Manager) RemoveNode(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, nodeID)
}

// ListHealthy returns every node whose heartbeat is within the window.
func (m *Manager) ListHealthy() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		if m.isLive(n) {
			out = append(out, n)
		}
	}
	return out
}

// ListAll returns every node, live or stale.
func (m *Manager) ListAll() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	return out
}

// DeadNodes returns the IDs of every node whose heartbeat has expired.
func (m *Manager) DeadNodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var dead []string
	for id, n := range m.nodes {
		if !m.isLive(n) {
			dead = append(dead, id)
		}
	}
	return dead
}

// PruneDead removes and returns the IDs of every stale node.
func (m *Manager) PruneDead() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dead []string
	for id, n := range m.nodes {
		if !m.isLive(n) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		delete(m.nodes, id)
	}
	return dead
}

// RouteToNode selects the least-loaded live node that has spare task
// capacity and whose agent kinds contain requiredAgentKind as a
// substring (an empty requirement matches every node), per spec.md
// §4.3/§8.5. Load is cpu_pct + (active_tasks/max(max_tasks,1))*100;
// ties resolve to whichever candidate the map iteration visits first.
func (m *Manager) RouteToNode(requiredAgentKind string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best Node
	found := false
	bestLoad := 0.0

	for _, n := range m.nodes {
		if !m.isLive(n) || n.ActiveTasks >= n.MaxTasks {
			continue
		}
		if requiredAgentKind != "" && !anyContains(n.AgentKinds, requiredAgentKind) {
			continue
		}
		load := nodeLoad(n)
		if !found || load < bestLoad {
			best = n
			bestLoad = load
			found = true
		}
	}
	return best, found
}

// nodeLoad computes the routing-load score for a node.
func nodeLoad(n Node) float64 {
	maxTasks := n.MaxTasks
	if maxTasks < 1 {
		maxTasks = 1
	}
	return n.CPUPercent + (float64(n.ActiveTasks)/float64(maxTasks))*100.0
}

func anyContains(kinds []string, want string) bool {
	for _, k := range kinds {
		if strings.Contains(k, want) {
			return true
		}
	}
	return false
}

// isLive reports whether n's heartbeat is within the timeout window.
// Caller must hold at least a read lock.
func (m *Manager) isLive(n Node) bool {
	return time.Since(n.LastHeartbeat) < m.heartbeatTimeout
}

// Count returns the number of registered nodes, live or not.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
