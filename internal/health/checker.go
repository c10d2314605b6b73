// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package health periodically TCP-probes aiOS's own inter-service
// dependencies (runtime, tools, memory, api-gateway) and reports their
// liveness, the same four services the original health checker tracked.
package health

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/logging"
)

// ServiceStatus is the last-known health of one dependency.
type ServiceStatus struct {
	Name                string    `json:"name"`
	Address             string    `json:"address"`
	Healthy             bool      `json:"healthy"`
	LastCheckMS         int64     `json:"last_check_ms"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
}

// DefaultServices mirrors the original health checker's default
// dependency list and ports.
func DefaultServices() map[string]string {
	return map[string]string{
		"runtime":     "127.0.0.1:50055",
		"tools":       "127.0.0.1:50052",
		"memory":      "127.0.0.1:50053",
		"api-gateway": "127.0.0.1:50054",
	}
}

// Checker tracks liveness of aiOS's own inter-service dependencies via
// periodic TCP connect probes.
type Checker struct {
	mu            sync.RWMutex
	services      map[string]ServiceStatus
	checkInterval time.Duration
	dialTimeout   time.Duration
}

// NewChecker builds a Checker for the given name->address set.
// checkInterval defaults to 10s, dialTimeout to 2s.
func NewChecker(services map[string]string, checkInterval, dialTimeout time.Duration) *Checker {
	if checkInterval <= 0 {
		checkInterval = 10 * time.Second
	}
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	statuses := make(map[string]ServiceStatus, len(services))
	for name, addr := range services {
		statuses[name] = ServiceStatus{Name: name, Address: addr}
	}
	return &Checker{services: statuses, checkInterval: checkInterval, dialTimeout: dialTimeout}
}

// CheckAll probes every tracked service once via TCP connect.
func (c *Checker) CheckAll(ctx context.Context) {
	c.mu.RLock()
	names := make([]string, 0, len(c.services))
	addrs := make([]string, 0, len(c.services))
	for name, s := range c.services {
		names = append(names, name)
		addrs = append(addrs, s.Address)
	}
	c.mu.RUnlock()

	now := time.Now()
	for i, name := range names {
		start := time.Now()
		healthy := c.probe(ctx, addrs[i])
		elapsed := time.Since(start)

		c.mu.Lock()
		status := c.services[name]
		status.LastCheckMS = elapsed.Milliseconds()
		status.LastCheckedAt = now
		if healthy {
			if !status.Healthy {
				logging.Debug().Str("service", name).Msg("dependency is now healthy")
			}
			status.Healthy = true
			status.ConsecutiveFailures = 0
		} else {
			status.ConsecutiveFailures++
			status.Healthy = false
			if status.ConsecutiveFailures <= 3 {
				logging.Warn().Str("service", name).Uint32("attempt", status.ConsecutiveFailures).
					Msg("dependency health check failed")
			}
		}
		c.services[name] = status
		c.mu.Unlock()
	}
}

// probe attempts a TCP connect to addr within the checker's dial timeout.
func (c *Checker) probe(ctx context.Context, addr string) bool {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// AllStatus returns the current status of every tracked service.
func (c *Checker) AllStatus() []ServiceStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ServiceStatus, 0, len(c.services))
	for _, s := range c.services {
		out = append(out, s)
	}
	return out
}

// AllHealthy reports whether every tracked service is currently healthy.
func (c *Checker) AllHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.services {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// Serve implements suture.Service: runs CheckAll on checkInterval until
// ctx is cancelled.
func (c *Checker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Debug().Msg("health checker shutting down")
			return ctx.Err()
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (c *Checker) String() string {
	return "health-checker"
}
