// Package config provides CLI configuration for meshsidecarctl.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: CLIConfig struct (~/.meshsidecarctl/cli.yaml)
//   - loader.go: Configuration loading, saving, and flag/env merging
package config
