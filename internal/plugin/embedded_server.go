// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer wraps an in-process NATS server used to fan out plugin
// trigger firings on subject "plugins.trigger.fired", so the dispatcher
// loop and any in-process subscriber communicate without an external
// broker dependency.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts an embedded NATS server bound to addr
// ("host:port"; port 0 picks a free port).
func NewEmbeddedServer(addr string) (*EmbeddedServer, error) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}
	opts := &server.Options{
		ServerName: "aios-plugin-events",
		Host:       host,
		Port:       port,
		NoLog:      true,
		MaxPayload: 4 * 1024 * 1024,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("plugin: create embedded NATS server: %w", err)
	}
	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("plugin: embedded NATS server not ready within timeout")
	}
	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL clients should dial to reach this server.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server, waiting for in-flight messages or ctx.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.server.WaitForShutdown()
		return nil
	}
}

// IsRunning reports whether the embedded server is up.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// splitHostPort parses "host:port", defaulting to 127.0.0.1:4222 when
// addr is empty and to an OS-assigned free port when port is "0" or
// missing.
func splitHostPort(addr string) (string, int, error) {
	if addr == "" {
		addr = "127.0.0.1:-1"
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("plugin: invalid NATS embedded address %q: %w", addr, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("plugin: invalid NATS embedded port %q: %w", portStr, err)
	}
	return host, port, nil
}
