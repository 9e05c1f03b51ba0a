// Package config provides configuration loading for the Complyze AI proxy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for complyze-proxy.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("complyze-proxy")
		viper.SetConfigType("yaml")
	}

	// Environment variables bind without a common prefix: the spec's names
	// (COMPLYZE_API, MONITOR_MODE, FAIL_OPEN, ...) are flat, not
	// dot-namespaced, so each is bound individually below rather than via
	// a single SetEnvPrefix + AutomaticEnv pass.
	bindEnvKeys()
}

// findConfigFile searches standard locations for a complyze-proxy config
// file with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".complyze-proxy"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "complyze-proxy"))
		}
	} else {
		paths = append(paths, "/etc/complyze-proxy")
	}
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "complyze-proxy"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindEnvKeys binds every environment variable spec.md §6 recognizes onto
// the matching config key.
func bindEnvKeys() {
	_ = viper.BindEnv("control_plane.api_base", "COMPLYZE_API")
	_ = viper.BindEnv("control_plane.workspace_id", "COMPLYZE_WORKSPACE", "FIREBASE_UID")
	_ = viper.BindEnv("bootstrap.monitor_mode", "MONITOR_MODE")
	_ = viper.BindEnv("bootstrap.enforcement_mode", "ENFORCEMENT_MODE")
	_ = viper.BindEnv("inspection.max_inspection_size_mb", "MAX_INSPECTION_SIZE_MB")
	_ = viper.BindEnv("inspection.max_body_size_mb", "MAX_BODY_SIZE_MB")
	_ = viper.BindEnv("inspection.inspection_timeout_ms", "INSPECTION_TIMEOUT_MS")
	_ = viper.BindEnv("inspection.max_memory_mb", "MAX_MEMORY_MB")
	_ = viper.BindEnv("fail_open", "FAIL_OPEN")
	_ = viper.BindEnv("strict_pin_mode", "STRICT_PIN_MODE")
	_ = viper.BindEnv("trace_mode", "TRACE_MODE")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT apply dev defaults or validate. Use this when CLI flags may override
// DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// WriteDefaultConfig renders a starter complyze-proxy.yaml at path, seeded
// with SetDefaults() values, for an operator to hand-edit before first run.
// It refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	var cfg Config
	cfg.SetDefaults()

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveWorkspaceID applies the COMPLYZE_WORKSPACE-wins-over-FIREBASE_UID
// rule explicitly, for callers that read the two env vars directly instead
// of through viper. An empty
// COMPLYZE_WORKSPACE falls through to FIREBASE_UID.
func ResolveWorkspaceID() string {
	if v := strings.TrimSpace(os.Getenv("COMPLYZE_WORKSPACE")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("FIREBASE_UID")); v != "" {
		return v
	}
	return "default"
}
