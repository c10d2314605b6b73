// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/metrics"
)

// Pruner is a suture.Service (Serve(ctx) error, String() string) that
// calls Registry.PruneStale on a fixed cadence, matching spec.md §4.2's
// 15-second background pruner. It is added to the supervisor tree's
// foundation layer alongside the registry itself.
type Pruner struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
}

// NewPruner creates a Pruner that sweeps registry every interval.
func NewPruner(registry *Registry, interval time.Duration, logger *slog.Logger) *Pruner {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{registry: registry, interval: interval, logger: logger}
}

// Serve implements suture.Service.
func (p *Pruner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pruned := p.registry.PruneStale()
			if len(pruned) > 0 {
				metrics.DiscoveryPrunedTotal.Add(float64(len(pruned)))
				p.logger.Info("pruned stale service records", "count", len(pruned), "names", pruned)
			}
		}
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (p *Pruner) String() string {
	return "discovery-pruner"
}
