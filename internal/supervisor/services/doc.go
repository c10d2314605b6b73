// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package services provides suture.Service wrappers for the control plane's
long-running components, translating their native lifecycle shapes
(ListenAndServe/Shutdown, blocking Run) into suture's context-aware Serve
pattern so supervisor.SupervisorTree can start, restart, and stop them
uniformly.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server (the management RPC listener)
  - Converts ListenAndServe into Serve, with a bounded Shutdown deadline

Runner (RunnerService):
  - Wraps any Start(ctx)/Shutdown(ctx)/IsRunning() component — the
    embedded NATS server backing the plugin trigger dispatcher is the
    one in use today
  - Calls Start, blocks on context cancellation, then calls Shutdown
    with a bounded deadline

# Lifecycle

	func (h *HTTPServerService) Serve(ctx context.Context) error {
	    errCh := make(chan error, 1)
	    go func() { errCh <- h.server.ListenAndServe() }()
	    select {
	    case err := <-errCh:
	        return err
	    case <-ctx.Done():
	        shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	        defer cancel()
	        return h.server.Shutdown(shutdownCtx)
	    }
	}

Return values determine supervisor behavior: nil means the service
stopped cleanly and will not be restarted by suture; a non-nil error
(other than context cancellation) signals a crash and triggers suture's
backoff/restart policy.

# See Also

  - internal/supervisor: SupervisorTree that registers these wrappers
  - github.com/thejerf/suture/v4: underlying supervision library
*/
package services
