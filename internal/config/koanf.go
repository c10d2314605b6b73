// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/MohaMehrzad/aios-core/internal/validation"
)

// DefaultConfigPaths lists the paths where a config file is searched for,
// in priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/aios/config.yaml",
	"/etc/aios/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "AIOS_CONFIG_PATH"

// Load builds the aiOS configuration from three layered sources, highest
// priority last:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. AIOS_*-prefixed environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("AIOS_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if verr := validation.ValidateStruct(cfg); verr != nil {
		return nil, fmt.Errorf("config: validation failed: %w", verr)
	}

	return cfg, nil
}

// knownSections lists the top-level Config struct fields that nest further
// fields, so envTransformFunc knows where to place the first dot.
var knownSections = []string{"logging", "rpc", "discovery", "cluster", "trust", "registry", "plugin", "admin", "capability", "health"}

// envTransformFunc turns AIOS_RPC_ORCHESTRATOR_ADDR into rpc.orchestrator_addr
// and AIOS_DATA_ROOT into data_root, matching the nesting of the Config
// struct's koanf tags.
func envTransformFunc(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "AIOS_"))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 2 {
		for _, section := range knownSections {
			if parts[0] == section {
				return section + "." + parts[1]
			}
		}
	}
	return s
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
