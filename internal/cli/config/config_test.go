// Package config defines the CLI configuration structure.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultControlPlane != "localhost:7070" {
		t.Errorf("DefaultControlPlane = %q, want %q", cfg.DefaultControlPlane, "localhost:7070")
	}
	if cfg.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want %q", cfg.DefaultOutput, "table")
	}
	if cfg.Connections == nil {
		t.Error("Connections should not be nil")
	}
	if len(cfg.Connections) != 0 {
		t.Errorf("Connections should be empty, got %d", len(cfg.Connections))
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path == "" {
		t.Error("DefaultConfigPath should not be empty")
	}
	if !filepath.IsAbs(path) {
		t.Error("Path should be absolute")
	}

	expected := filepath.Join(".meshsidecarctl", "cli.yaml")
	if !containsSuffix(path, expected) {
		t.Errorf("Path = %q, should end with %q", path, expected)
	}
}

func containsSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("Load should not error for nonexistent file: %v", err)
	}
	if cfg == nil {
		t.Error("Load should return default config")
	}
	if cfg.DefaultControlPlane != "localhost:7070" {
		t.Error("Should return default config for nonexistent file")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Errorf("Load should not error: %v", err)
	}
	if cfg == nil {
		t.Error("Load should return config")
	}
}

func TestSave_CreateDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "cli.yaml")

	cfg := Default()
	if err := Save(cfg, path); err != nil {
		t.Errorf("Save failed: %v", err)
	}

	parentDir := filepath.Dir(path)
	if _, err := os.Stat(parentDir); os.IsNotExist(err) {
		t.Error("Directory should have been created")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cli.yaml")

	cfg := Default()
	cfg.DefaultControlPlane = "meshsidecar.internal:7070"
	cfg.Connections["prod"] = ConnectionConfig{ControlPlane: "prod:7070", Socket: "/var/run/meshsidecar/prod.sock"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DefaultControlPlane != cfg.DefaultControlPlane {
		t.Errorf("DefaultControlPlane = %q, want %q", loaded.DefaultControlPlane, cfg.DefaultControlPlane)
	}
	if loaded.Connections["prod"].ControlPlane != "prod:7070" {
		t.Errorf("Connections[prod].ControlPlane = %q, want %q", loaded.Connections["prod"].ControlPlane, "prod:7070")
	}
}

func TestMerge(t *testing.T) {
	cfg := Default()

	env := map[string]string{
		"CONTROL_PLANE": "fromenv:7070",
	}
	flags := map[string]string{
		"OUTPUT": "json",
	}

	result := Merge(cfg, env, flags)
	if result.DefaultControlPlane != "fromenv:7070" {
		t.Errorf("DefaultControlPlane = %q, want env override %q", result.DefaultControlPlane, "fromenv:7070")
	}
	if result.DefaultOutput != "json" {
		t.Errorf("DefaultOutput = %q, want flag override %q", result.DefaultOutput, "json")
	}
}

func TestMerge_FlagsOverrideEnv(t *testing.T) {
	cfg := Default()

	env := map[string]string{"CONTROL_PLANE": "fromenv:7070"}
	flags := map[string]string{"CONTROL_PLANE": "fromflag:7070"}

	result := Merge(cfg, env, flags)
	if result.DefaultControlPlane != "fromflag:7070" {
		t.Errorf("DefaultControlPlane = %q, want flag to win over env", result.DefaultControlPlane)
	}
}

func TestCLIConfig_Struct(t *testing.T) {
	cfg := CLIConfig{
		DefaultControlPlane: "api.example.com:7070",
		DefaultOutput:       "json",
		CurrentConnection:   "prod",
		Connections: map[string]ConnectionConfig{
			"prod": {ControlPlane: "prod.example.com:7070", Socket: "/var/run/meshsidecar/prod.sock"},
			"dev":  {ControlPlane: "localhost:7070", Socket: "/var/run/meshsidecar/dev.sock"},
		},
	}

	if cfg.DefaultControlPlane != "api.example.com:7070" {
		t.Error("DefaultControlPlane not set correctly")
	}
	if len(cfg.Connections) != 2 {
		t.Error("Connections count incorrect")
	}
	if cfg.Connections["prod"].ControlPlane != "prod.example.com:7070" {
		t.Error("prod ControlPlane not set correctly")
	}
}

func TestConnectionConfig_Struct(t *testing.T) {
	conn := ConnectionConfig{
		ControlPlane: "meshsidecar.example.com:7070",
		Socket:       "/var/run/meshsidecar/meshsidecar.sock",
	}

	if conn.ControlPlane != "meshsidecar.example.com:7070" {
		t.Error("ControlPlane not set correctly")
	}
	if conn.Socket == "" {
		t.Error("Socket should be set")
	}
}
