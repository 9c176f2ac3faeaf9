package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for errors.
//
// Struct tags handle field-level validation (required fields, value ranges),
// while this function adds cross-field rules that tags cannot express, such
// as backend-specific mount requirements.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Mounts))
	for i := range cfg.Mounts {
		m := &cfg.Mounts[i]

		if seen[m.Path] {
			return fmt.Errorf("mount %d: duplicate mount path %q", i, m.Path)
		}
		seen[m.Path] = true

		if err := validateMountBackend(m); err != nil {
			return fmt.Errorf("mount %d (%s): %w", i, m.Path, err)
		}
	}

	return nil
}

// validateMountBackend checks backend-specific required fields.
func validateMountBackend(m *MountConfig) error {
	switch m.Backend {
	case "memory":
		return nil
	case "kvstore", "handlefs":
		if m.Database == "" {
			return fmt.Errorf("%s backend requires database", m.Backend)
		}
	case "hostdir":
		if m.HostPath == "" {
			return fmt.Errorf("hostdir backend requires host_path")
		}
	case "s3":
		if m.Bucket == "" {
			return fmt.Errorf("s3 backend requires bucket")
		}
	}
	return nil
}
