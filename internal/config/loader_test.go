package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestWriteDefaultConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "complyze-proxy.yaml")

	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:8080", cfg.Server.ListenAddr)
	}
	if cfg.CA.LeafCacheSize != 2048 {
		t.Errorf("LeafCacheSize = %d, want 2048", cfg.CA.LeafCacheSize)
	}
}

func TestWriteDefaultConfig_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "complyze-proxy.yaml")

	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("first WriteDefaultConfig() error = %v", err)
	}
	if err := WriteDefaultConfig(path); err == nil {
		t.Error("expected second WriteDefaultConfig() to fail, file already exists")
	}
}
