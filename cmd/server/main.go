// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the aiOS control-plane server.
//
// aiOS is the supervisory control plane for a distributed, AI-native
// operating system: it supervises local services, tracks cluster
// membership and load, gates every tool invocation behind capability
// grants and an audit ledger, hosts a dynamic plugin system with static
// risk analysis, and issues the mTLS trust material peers use to talk
// to each other.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, optional YAML file, and AIOS_-prefixed
//     environment variables (Koanf v2)
//  2. Logging: zerolog, bridged to slog for the supervisor tree
//  3. Trust root: self-signed ECDSA CA + leaf certificate (generated on first boot)
//  4. Audit ledger: DuckDB-backed, falling back to an in-memory store
//  5. Capability store: Badger-backed TTL grant store
//  6. Discovery registry and cluster manager, with heartbeat pruning
//  7. Tool registry and capability-gated dispatcher
//  8. Plugin manager, embedded NATS event bus, and trigger dispatcher
//  9. Admin RBAC enforcer (Casbin), separate from the per-agent capability model
//  10. HTTP surface: chi-routed JSON/HTTP RPC layer under a supervised http.Server
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables, prefixed AIOS_ (see internal/config)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the root
// context is canceled, the supervisor tree stops every service in
// reverse dependency order, and the HTTP listener drains in-flight
// requests before closing.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/MohaMehrzad/aios-core/internal/adminauthz"
	"github.com/MohaMehrzad/aios-core/internal/audit"
	"github.com/MohaMehrzad/aios-core/internal/auth"
	"github.com/MohaMehrzad/aios-core/internal/capability"
	"github.com/MohaMehrzad/aios-core/internal/cluster"
	"github.com/MohaMehrzad/aios-core/internal/config"
	"github.com/MohaMehrzad/aios-core/internal/discovery"
	"github.com/MohaMehrzad/aios-core/internal/health"
	"github.com/MohaMehrzad/aios-core/internal/logging"
	"github.com/MohaMehrzad/aios-core/internal/orchestrator"
	"github.com/MohaMehrzad/aios-core/internal/plugin"
	"github.com/MohaMehrzad/aios-core/internal/registry"
	"github.com/MohaMehrzad/aios-core/internal/remote"
	"github.com/MohaMehrzad/aios-core/internal/rpc"
	"github.com/MohaMehrzad/aios-core/internal/supervisor"
	"github.com/MohaMehrzad/aios-core/internal/supervisor/services"
	"github.com/MohaMehrzad/aios-core/internal/trust"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting aiOS control plane with supervisor tree")

	trustMgr := trust.NewManager(cfg.Trust.CertDir, cfg.Trust.CAValidity, cfg.Trust.LeafValidity, cfg.Trust.DNSNames)
	if _, err := trustMgr.GenerateSelfSigned("aios-core"); err != nil {
		logging.Fatal().Err(err).Msg("Failed to establish mTLS trust root")
	}
	logging.Info().Str("cert_dir", cfg.Trust.CertDir).Msg("Trust root ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
		logging.Fatal().Err(err).Str("data_root", cfg.DataRoot).Msg("Failed to create data root directory")
	}

	var auditStore audit.Store
	duckDB, err := sql.Open("duckdb", cfg.DataRoot+"/audit.db")
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to open audit database, falling back to in-memory ledger")
		auditStore = audit.NewMemoryStore(0)
	} else {
		duckStore := audit.NewDuckDBStore(duckDB)
		if err := duckStore.CreateTable(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to initialize audit schema, falling back to in-memory ledger")
			_ = duckDB.Close()
			auditStore = audit.NewMemoryStore(0)
		} else {
			auditStore = duckStore
			defer func() {
				if err := duckDB.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing audit database")
				}
			}()
			logging.Info().Msg("Audit ledger backed by DuckDB")
		}
	}

	capStore, err := capability.OpenBadgerStore(cfg.Capability.DBPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open capability grant store")
	}
	defer func() {
		if err := capStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing capability store")
		}
	}()

	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	discoveryRegistry := discovery.NewRegistry(cfg.Discovery.HeartbeatTTL)
	if cfg.Discovery.Enabled {
		pruner := discovery.NewPruner(discoveryRegistry, cfg.Discovery.PruneInterval, slogLogger)
		tree.AddFoundationService(pruner)
	}

	clusterMgr := cluster.NewManager(cfg.Cluster.NodeID, cfg.Cluster.HeartbeatTimeout, cfg.Cluster.Enabled)
	if cfg.Cluster.Enabled {
		monitor := cluster.NewMonitor(clusterMgr, cfg.Cluster.MonitorInterval, slogLogger)
		tree.AddFoundationService(monitor)
	}

	compactor := capability.NewCompactor(capStore, cfg.Capability.CompactionInterval, 24*time.Hour)
	tree.AddFoundationService(compactor)

	confirmations, err := auth.NewConfirmationManager(&cfg.Registry)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize confirmation token manager")
	}

	remoteExecutor := remote.NewExecutor(5*time.Second, 60*time.Second)
	defer remoteExecutor.CloseAll()

	reg := registry.New()
	dispatcher := registry.NewDispatcher(
		reg,
		capStore,
		auditStore,
		confirmations,
		clusterMgr,
		remoteExecutor,
		cfg.Registry.DefaultToolTimeout,
		cfg.Registry.DefaultRatePerSec,
	)

	pluginMgr := plugin.NewManager(cfg.Plugin.Dir, cfg.Plugin.RiskRejectAt)
	if count, err := pluginMgr.ScanAndRegister(reg); err != nil {
		logging.Warn().Err(err).Msg("Failed to load installed plugins")
	} else if count > 0 {
		logging.Info().Int("count", count).Msg("Registered installed plugin tools")
	}

	embeddedNATS, err := plugin.NewEmbeddedServer(cfg.Plugin.NATSEmbeddedAddr)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to start embedded plugin event bus")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := embeddedNATS.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded plugin event bus")
		}
	}()

	eventDispatcher, err := plugin.NewEventDispatcher(embeddedNATS.ClientURL(), dispatcher)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to start plugin trigger dispatcher")
	}
	tree.AddServicesService(eventDispatcher)

	enforcer, err := adminauthz.NewEnforcer(ctx, &adminauthz.EnforcerConfig{
		ModelPath:  cfg.Admin.ModelPath,
		PolicyPath: cfg.Admin.PolicyPath,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize admin RBAC enforcer")
	}
	adminSvc := adminauthz.NewService(enforcer)

	healthChecker := health.NewChecker(health.DefaultServices(), cfg.Health.CheckInterval, cfg.Health.DialTimeout)
	tree.AddCoreService(healthChecker)

	rpcHandler := &rpc.Handler{
		Registry:     reg,
		Dispatcher:   dispatcher,
		Discovery:    discoveryRegistry,
		Cluster:      clusterMgr,
		Capabilities: capStore,
		AuditLog:     auditStore,
		Plugins:      pluginMgr,
		Trust:        trustMgr,
		Remote:       remoteExecutor,
		Admin:        adminSvc,
		HeartbeatHub: cluster.NewHeartbeatHub(clusterMgr),
		Goals:        orchestrator.NewStore(),
	}
	router := rpc.NewRouter(rpcHandler)
	httpServer := &http.Server{
		Addr:              cfg.RPC.ManagementAddr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddServicesService(services.NewHTTPServerService(httpServer, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("management_addr", cfg.RPC.ManagementAddr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
