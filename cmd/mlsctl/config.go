package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// mlsctlVersion is the CLI's own version string, independent of the
// protocol ciphersuite it drives.
const mlsctlVersion = "0.1.0"

// Config holds the handful of settings .mlsctl/config.toml carries.
// Grounded on germtb-mlsgit/internal/config.MLSGitConfig's shape: a single
// TOML section wrapping a handful of scalar fields, defaulted when absent.
type Config struct {
	Version    string `toml:"version"`
	Ciphersuite int   `toml:"ciphersuite"`
}

type tomlConfig struct {
	Mlsctl Config `toml:"mlsctl"`
}

func defaultConfig() Config {
	return Config{Version: mlsctlVersion, Ciphersuite: 0x0001}
}

// loadConfig reads .mlsctl/config.toml, falling back to defaults if the
// file doesn't exist yet.
func loadConfig(p mlsctlPaths) (Config, error) {
	data, err := os.ReadFile(p.configTOML())
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var wrapper tomlConfig
	if _, err := toml.Decode(string(data), &wrapper); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg := defaultConfig()
	if wrapper.Mlsctl.Version != "" {
		cfg.Version = wrapper.Mlsctl.Version
	}
	if wrapper.Mlsctl.Ciphersuite != 0 {
		cfg.Ciphersuite = wrapper.Mlsctl.Ciphersuite
	}
	return cfg, nil
}

// saveConfig writes cfg to .mlsctl/config.toml.
func saveConfig(p mlsctlPaths, cfg Config) error {
	text := fmt.Sprintf("[mlsctl]\nversion = %q\nciphersuite = %d\n", cfg.Version, cfg.Ciphersuite)
	return os.WriteFile(p.configTOML(), []byte(text), 0o644)
}
