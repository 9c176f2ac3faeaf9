package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applySyncTimeoutDefaults(cfg)

	for i := range cfg.Mounts {
		applyMountDefaults(&cfg.Mounts[i])
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applySyncTimeoutDefaults sets the sync pass timeout default.
func applySyncTimeoutDefaults(cfg *Config) {
	if cfg.SyncTimeout == 0 {
		cfg.SyncTimeout = 30 * time.Second
	}
}

// applyMountDefaults sets per-mount defaults.
func applyMountDefaults(cfg *MountConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Backend == "s3" && cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
}

// GetDefaultConfig returns a configuration with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Mounts: []MountConfig{
			{Path: "/mnt/mem", Backend: "memory"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
