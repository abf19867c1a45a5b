package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Network != Mainnet {
		t.Errorf("expected Mainnet, got %s", cfg.Network)
	}
	if cfg.Oracle.TimeoutSeconds != 10 {
		t.Errorf("expected 10s timeout, got %d", cfg.Oracle.TimeoutSeconds)
	}
	if cfg.Oracle.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.Oracle.MaxRetries)
	}
	if cfg.FeeRateSatVB != 1.0 {
		t.Errorf("expected fee rate 1.0, got %v", cfg.FeeRateSatVB)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Log.Level)
	}
	if len(cfg.Oracle.Servers) == 0 {
		t.Errorf("expected a default oracle server")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Network = Testnet
	cfg.FeeRateSatVB = 2.5
	cfg.Oracle.Servers = []string{"testnet.example.com:50002"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Network != Testnet {
		t.Errorf("expected Testnet after round trip, got %s", loaded.Network)
	}
	if loaded.FeeRateSatVB != 2.5 {
		t.Errorf("expected fee rate 2.5 after round trip, got %v", loaded.FeeRateSatVB)
	}
	if len(loaded.Oracle.Servers) != 1 || loaded.Oracle.Servers[0] != "testnet.example.com:50002" {
		t.Errorf("unexpected servers after round trip: %+v", loaded.Oracle.Servers)
	}
}

func TestLoadPartialOverridesKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("fee_rate_sat_vb: 5.0\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FeeRateSatVB != 5.0 {
		t.Errorf("expected overridden fee rate 5.0, got %v", cfg.FeeRateSatVB)
	}
	if cfg.Oracle.MaxRetries != 3 {
		t.Errorf("expected default max_retries preserved, got %d", cfg.Oracle.MaxRetries)
	}
}

func TestLoadOrCreateWritesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.yaml")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if cfg.Network != Mainnet {
		t.Errorf("expected default network, got %s", cfg.Network)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatalf("expected error loading missing file")
	}
}
