// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MohaMehrzad/aios-core/internal/registry"
)

// pythonEntryPoint wraps a plugin's user-authored module so its main(dict)
// function is invoked with the dispatcher's input JSON on stdin and its
// return value is the only thing written to stdout, matching the original
// source's plugin execution contract (spec.md §9 "out-of-process
// invocation shim").
const pythonEntryPoint = `
import json, sys, runpy

_ns = runpy.run_path(%q, run_name="aios_plugin")
_main = _ns.get("main")
if _main is None:
    print(json.dumps({"error": "plugin module defines no main(input_data) function"}))
    sys.exit(1)

_input = json.loads(sys.stdin.read() or "{}")
print(json.dumps(_main(_input)))
`

// HandlerFor builds the registry.Handler that invokes the plugin named
// name as a subprocess: its code is run with the dispatcher's input JSON
// piped to stdin, and stdout is captured as the tool's output JSON. The
// handler is bound once per tool name at registration time (Create,
// FromTemplate, ScanAndRegister) rather than shared across every plugin,
// since each must run a different script.
func (m *Manager) HandlerFor(name string) registry.Handler {
	scriptPath := m.scriptPath(name)
	return func(ctx context.Context, input []byte) ([]byte, error) {
		wrapper := fmt.Sprintf(pythonEntryPoint, scriptPath)
		cmd := exec.CommandContext(ctx, "python3", "-c", wrapper)
		cmd.Stdin = bytes.NewReader(input)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("plugin: %s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return bytes.TrimSpace(stdout.Bytes()), nil
	}
}
