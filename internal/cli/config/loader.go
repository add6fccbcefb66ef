// Package config defines the CLI configuration structure.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".meshsidecarctl", "cli.yaml")
}

// Load loads CLI configuration from path, or DefaultConfigPath if path
// is empty. A missing file is not an error; Default is returned.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cli config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cli config: %w", err)
	}
	if cfg.Connections == nil {
		cfg.Connections = make(map[string]ConnectionConfig)
	}
	return cfg, nil
}

// Save writes cfg to path, or DefaultConfigPath if path is empty.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal cli config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Merge overlays env (MESHSIDECARCTL_*-stripped keys, e.g.
// "CONTROL_PLANE", "SOCKET", "OUTPUT") and then flags onto cfg's
// default connection settings, flags taking precedence over env which
// takes precedence over the loaded file.
func Merge(cfg *CLIConfig, env map[string]string, flags map[string]string) *CLIConfig {
	apply := func(src map[string]string) {
		if v, ok := src["CONTROL_PLANE"]; ok && v != "" {
			cfg.DefaultControlPlane = v
		}
		if v, ok := src["SOCKET"]; ok && v != "" {
			cfg.DefaultSocket = v
		}
		if v, ok := src["OUTPUT"]; ok && v != "" {
			cfg.DefaultOutput = v
		}
	}
	apply(env)
	apply(flags)
	return cfg
}
