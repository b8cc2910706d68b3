// Package config loads process configuration from the environment, with an
// optional YAML file overlay, following this codebase's env-then-validate
// loading convention.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/marianofino/pocket-mqtt/src/common/secrets"
)

// Load reads environment variables into a Config, applies an optional YAML
// overlay at the path named by ConfigFilePath if the file exists, and
// validates the result.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment configuration: %w", err)
	}

	if cfg.ConfigFilePath != "" {
		if err := applyFileOverlay(cfg, cfg.ConfigFilePath); err != nil {
			return nil, err
		}
	}

	pepper, err := secrets.Resolve(cfg.TenantTokenPepper)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant token pepper: %w", err)
	}
	cfg.TenantTokenPepper = pepper

	dsn, err := secrets.Resolve(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database DSN: %w", err)
	}
	cfg.DatabaseDSN = dsn

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyFileOverlay decodes a YAML file on top of cfg's env-populated
// defaults. A missing file is not an error: the overlay is optional.
func applyFileOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}
