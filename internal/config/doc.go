// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads aiOS control-plane settings through koanf v2,
// layering built-in defaults, an optional YAML file, and AIOS_*
// environment variables, with environment variables taking precedence.
package config
