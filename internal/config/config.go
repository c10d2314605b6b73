// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the aiOS control-plane configuration, layering
// built-in defaults, an optional YAML file, and environment variables
// (highest priority) via koanf v2.
package config

import "time"

// Config is the top-level configuration for the aiOS core.
type Config struct {
	DataRoot string         `koanf:"data_root"`
	Logging  LoggingConfig  `koanf:"logging"`
	RPC      RPCConfig      `koanf:"rpc"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Cluster  ClusterConfig  `koanf:"cluster"`
	Trust    TrustConfig    `koanf:"trust"`
	Registry RegistryConfig `koanf:"registry"`
	Plugin   PluginConfig   `koanf:"plugin"`
	Admin    AdminConfig    `koanf:"admin"`
	Capability CapabilityConfig `koanf:"capability"`
	Health     HealthConfig     `koanf:"health"`
}

// LoggingConfig configures the zerolog-backed global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RPCConfig configures the request/response surface of §6.
type RPCConfig struct {
	OrchestratorAddr string `koanf:"orchestrator_addr" validate:"required,hostname_port"`
	ToolsAddr        string `koanf:"tools_addr" validate:"required,hostname_port"`
	MemoryAddr       string `koanf:"memory_addr" validate:"required,hostname_port"`
	GatewayAddr      string `koanf:"gateway_addr" validate:"required,hostname_port"`
	RuntimeAddr      string `koanf:"runtime_addr" validate:"required,hostname_port"`
	ManagementAddr   string `koanf:"management_addr" validate:"required,hostname_port"`
}

// DiscoveryConfig configures the service registry.
type DiscoveryConfig struct {
	Enabled          bool          `koanf:"enabled"`
	HeartbeatTTL     time.Duration `koanf:"heartbeat_ttl"`
	PruneInterval    time.Duration `koanf:"prune_interval"`
}

// ClusterConfig configures cluster membership and routing.
type ClusterConfig struct {
	Enabled          bool          `koanf:"enabled"`
	NodeID           string        `koanf:"node_id"`
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout"`
	MonitorInterval  time.Duration `koanf:"monitor_interval"`
}

// TrustConfig configures the mTLS trust root.
type TrustConfig struct {
	CertDir      string        `koanf:"cert_dir"`
	CAValidity   time.Duration `koanf:"ca_validity"`
	LeafValidity time.Duration `koanf:"leaf_validity"`
	DNSNames     []string      `koanf:"dns_names"`
}

// RegistryConfig configures the tool dispatcher.
type RegistryConfig struct {
	DefaultToolTimeout time.Duration `koanf:"default_tool_timeout"`
	DefaultRatePerSec  float64       `koanf:"default_rate_per_sec"`
	ConfirmationSecret string       `koanf:"confirmation_secret" validate:"required,min=32"`
}

// PluginConfig configures the plugin manager.
type PluginConfig struct {
	Dir              string  `koanf:"dir"`
	RiskRejectAt     float64 `koanf:"risk_reject_at"`
	NATSEmbeddedAddr string  `koanf:"nats_embedded_addr"`
}

// AdminConfig configures the admin RBAC layer.
type AdminConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// CapabilityConfig configures the badger-backed capability grant store.
type CapabilityConfig struct {
	DBPath             string        `koanf:"db_path"`
	DefaultGrantTTL    time.Duration `koanf:"default_grant_ttl"`
	CompactionInterval time.Duration `koanf:"compaction_interval"`
}

// HealthConfig configures the inter-service health checker.
type HealthConfig struct {
	CheckInterval time.Duration `koanf:"check_interval"`
	DialTimeout   time.Duration `koanf:"dial_timeout"`
}

// defaultConfig returns sensible defaults, applied before the config file
// and environment variables are layered on top.
func defaultConfig() *Config {
	return &Config{
		DataRoot: "/var/lib/aios",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RPC: RPCConfig{
			OrchestratorAddr: "127.0.0.1:50051",
			ToolsAddr:        "127.0.0.1:50052",
			MemoryAddr:       "127.0.0.1:50053",
			GatewayAddr:      "127.0.0.1:50054",
			RuntimeAddr:      "127.0.0.1:50055",
			ManagementAddr:   "127.0.0.1:9090",
		},
		Discovery: DiscoveryConfig{
			Enabled:       true,
			HeartbeatTTL:  45 * time.Second,
			PruneInterval: 15 * time.Second,
		},
		Cluster: ClusterConfig{
			Enabled:          false,
			HeartbeatTimeout: 30 * time.Second,
			MonitorInterval:  15 * time.Second,
		},
		Trust: TrustConfig{
			CertDir:      "certs",
			CAValidity:   10 * 365 * 24 * time.Hour,
			LeafValidity: 2 * 365 * 24 * time.Hour,
		},
		Registry: RegistryConfig{
			DefaultToolTimeout: 30 * time.Second,
			DefaultRatePerSec:  5.0,
		},
		Plugin: PluginConfig{
			Dir:              "plugins",
			RiskRejectAt:     70,
			NATSEmbeddedAddr: "127.0.0.1:4222",
		},
		Admin: AdminConfig{
			ModelPath:  "config/rbac_model.conf",
			PolicyPath: "config/rbac_policy.csv",
		},
		Capability: CapabilityConfig{
			DBPath:             "data/capabilities.db",
			DefaultGrantTTL:    24 * time.Hour,
			CompactionInterval: 10 * time.Minute,
		},
		Health: HealthConfig{
			CheckInterval: 10 * time.Second,
			DialTimeout:   2 * time.Second,
		},
	}
}
