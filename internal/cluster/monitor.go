// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package cluster

import (
	"context"
	"log/slog"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/metrics"
)

// Monitor is a suture.Service that sweeps the cluster Manager for dead
// nodes on a fixed cadence, matching the 15-second monitor loop the
// original cluster manager ran.
type Monitor struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewMonitor creates a Monitor that prunes manager every interval.
func NewMonitor(manager *Manager, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{manager: manager, interval: interval, logger: logger}
}

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			dead := m.manager.PruneDead()
			for _, id := range dead {
				m.logger.Warn("cluster node is dead, removed", "node_id", id)
			}
			healthy := len(m.manager.ListHealthy())
			metrics.ClusterRouteDecisions.WithLabelValues("_monitor", "healthy_count").Add(0)
			m.logger.Debug("cluster status", "healthy_nodes", healthy)
		}
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (m *Monitor) String() string {
	return "cluster-monitor"
}
