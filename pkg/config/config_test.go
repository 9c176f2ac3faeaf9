package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsApplied(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

mounts:
  - path: /mnt/idb
    backend: kvstore
    database: ` + filepath.ToSlash(filepath.Join(tmpDir, "idb")) + `
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.SyncTimeout != 30*time.Second {
		t.Errorf("Expected default sync_timeout 30s, got %v", cfg.SyncTimeout)
	}
	if len(cfg.Mounts) != 1 {
		t.Fatalf("Expected 1 mount, got %d", len(cfg.Mounts))
	}
	if cfg.Mounts[0].Backend != "kvstore" {
		t.Errorf("Expected backend 'kvstore', got %q", cfg.Mounts[0].Backend)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level INFO, got %q", cfg.Logging.Level)
	}
	if len(cfg.Mounts) == 0 {
		t.Error("Expected a default memory mount")
	}
}

func TestLoad_LevelNormalized(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "debug"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level DEBUG, got %q", cfg.Logging.Level)
	}
}

func TestLoad_DurationFromString(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
sync_timeout: "2m"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.SyncTimeout != 2*time.Minute {
		t.Errorf("Expected sync_timeout 2m, got %v", cfg.SyncTimeout)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Mounts = append(cfg.Mounts, MountConfig{
		Path:     "/mnt/host",
		Backend:  "hostdir",
		HostPath: tmpDir,
		Watch:    true,
	})

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}

	if len(loaded.Mounts) != 2 {
		t.Fatalf("Expected 2 mounts after round trip, got %d", len(loaded.Mounts))
	}
	if loaded.Mounts[1].HostPath != tmpDir {
		t.Errorf("Expected host_path %q, got %q", tmpDir, loaded.Mounts[1].HostPath)
	}
	if !loaded.Mounts[1].Watch {
		t.Error("Expected watch to survive round trip")
	}
}

func TestMustLoad_MissingExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := MustLoad(filepath.Join(tmpDir, "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}
