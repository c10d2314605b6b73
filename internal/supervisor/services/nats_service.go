// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"fmt"
	"time"
)

// Runner is a generic Start/Shutdown/IsRunning lifecycle, matched by the
// embedded NATS server the plugin event dispatcher runs in-process.
type Runner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// RunnerService adapts a Runner's Start/Shutdown lifecycle to suture's
// Serve pattern:
//  1. Calls Start(ctx) to begin the component
//  2. Waits for context cancellation
//  3. Calls Shutdown(ctx) for graceful cleanup
//
// Example usage:
//
//	dispatcher, _ := plugin.NewEventDispatcher(cfg)
//	svc := services.NewRunnerService("plugin-events", dispatcher)
//	tree.AddServicesService(svc)
type RunnerService struct {
	runner          Runner
	shutdownTimeout time.Duration
	name            string
}

// NewRunnerService creates a runner service wrapper with a 10s default
// shutdown timeout.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return NewRunnerServiceWithTimeout(name, runner, 10*time.Second)
}

// NewRunnerServiceWithTimeout creates a runner service wrapper with a custom
// shutdown timeout.
func NewRunnerServiceWithTimeout(name string, runner Runner, shutdownTimeout time.Duration) *RunnerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &RunnerService{runner: runner, shutdownTimeout: shutdownTimeout, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("%s: start failed: %w", s.name, err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.runner.Shutdown(shutdownCtx)

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *RunnerService) String() string {
	return s.name
}
