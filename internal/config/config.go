// Package config loads the engine's YAML configuration file: the oracle
// server list, network tag, default fee rate, log settings, and optional
// UTXO cache path. It is read once at process start and treated as
// immutable afterward.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Network is the chain this engine operates against.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// OracleConfig configures the Electrum/Fulcrum client.
type OracleConfig struct {
	Servers        []string `yaml:"servers"`
	UseTLS         bool     `yaml:"use_tls"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxRetries     int      `yaml:"max_retries"`
}

// LoggingConfig controls pkg/logging's output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	TimeFormat string `yaml:"time_format,omitempty"`
}

// Config is the engine's top-level configuration.
type Config struct {
	Network      Network       `yaml:"network"`
	Oracle       OracleConfig  `yaml:"oracle"`
	FeeRateSatVB float64       `yaml:"fee_rate_sat_vb"`
	Log          LoggingConfig `yaml:"log"`
	// CacheDBPath, if set, enables the sqlite UTXO cache at this path.
	CacheDBPath string `yaml:"cache_db_path,omitempty"`
}

// DefaultConfig returns a Config with the reference tool's defaults:
// mainnet, a 10s oracle timeout, 3 retries, and a 1.0 sat/vB fee rate.
func DefaultConfig() *Config {
	return &Config{
		Network: Mainnet,
		Oracle: OracleConfig{
			Servers:        []string{"electrum.blockstream.info:50002"},
			UseTLS:         true,
			TimeoutSeconds: 10,
			MaxRetries:     3,
		},
		FeeRateSatVB: 1.0,
		Log: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigFileName is the default config file name in a data directory.
const ConfigFileName = "config.yaml"

// Load reads and parses a YAML config file at path, starting from
// DefaultConfig so any field the file omits keeps its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrCreate behaves like Load, but writes a default config file to path
// (creating its parent directory) if none exists yet, then returns it.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := []byte("# btctx engine configuration\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
