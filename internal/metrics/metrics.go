// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

var (
	// DispatchTotal counts every dispatcher.Execute call by tool and outcome.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aios_dispatch_total",
			Help: "Total number of tool dispatch attempts",
		},
		[]string{"tool_name", "outcome"},
	)

	// DispatchDuration records tool execution latency.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aios_dispatch_duration_seconds",
			Help:    "Duration of tool dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool_name"},
	)

	// AuditWriteFailures counts ledger write failures surfaced as
	// ErrorKindAuditFailure.
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aios_audit_write_failures_total",
			Help: "Total number of audit ledger write failures",
		},
	)

	// ClusterRouteDecisions counts route_to_node outcomes.
	ClusterRouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aios_cluster_route_decisions_total",
			Help: "Total number of cluster routing decisions",
		},
		[]string{"agent_kind", "result"}, // result: "routed", "no_node"
	)

	// DiscoveryPrunedTotal counts entries removed by the stale pruner.
	DiscoveryPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aios_discovery_pruned_total",
			Help: "Total number of service records pruned for heartbeat staleness",
		},
	)

	// PluginTriggerFired counts trigger firings by kind.
	PluginTriggerFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aios_plugin_trigger_fired_total",
			Help: "Total number of plugin trigger firings",
		},
		[]string{"kind", "plugin_name"},
	)

	// PluginRiskScore observes static-analysis risk scores at create time.
	PluginRiskScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aios_plugin_risk_score",
			Help:    "Static risk analysis score assigned to created plugins",
			Buckets: []float64{0, 10, 30, 50, 70, 90, 100},
		},
	)

	// CapabilityGrantsActive tracks the current count of active grants.
	CapabilityGrantsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aios_capability_grants_active",
			Help: "Current number of active (non-revoked, unexpired) capability grants",
		},
	)

	// rpcActiveRequests tracks in-flight RPC surface requests.
	rpcActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aios_rpc_active_requests",
			Help: "Current number of in-flight RPC surface requests",
		},
	)

	// rpcRequestDuration records RPC surface request latency by route/status.
	rpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aios_rpc_request_duration_seconds",
			Help:    "Duration of RPC surface HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// TrackActiveRequest increments or decrements the in-flight RPC request
// gauge; callers defer the decrementing call.
func TrackActiveRequest(active bool) {
	if active {
		rpcActiveRequests.Inc()
	} else {
		rpcActiveRequests.Dec()
	}
}

// RecordAPIRequest records one completed RPC surface request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	rpcRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// namedGauges maps a gauge's metric name to the gauge itself, so callers
// that only know a metric name at runtime (plugin metric_threshold
// triggers) can sample it without scraping /metrics.
var namedGauges = map[string]prometheus.Gauge{
	"aios_capability_grants_active": CapabilityGrantsActive,
	"aios_rpc_active_requests":      rpcActiveRequests,
}

// SampleGauge reads a registered gauge's current value by metric name.
// Reports false if name names no known gauge.
func SampleGauge(name string) (float64, bool) {
	g, ok := namedGauges[name]
	if !ok {
		return 0, false
	}
	var m io_prometheus_client.Metric
	if err := g.Write(&m); err != nil {
		return 0, false
	}
	return m.GetGauge().GetValue(), true
}
