// Package config provides configuration types for the Complyze AI proxy.
//
// Configuration is primarily driven by environment variables (the bootstrap
// surface the control plane expects), with an optional YAML file as a
// secondary override path for local development.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for the proxy process.
type Config struct {
	// Server configures the CONNECT listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// ControlPlane configures the settings/heartbeat/event endpoints.
	ControlPlane ControlPlaneConfig `yaml:"control_plane" mapstructure:"control_plane"`

	// Inspection configures body-size caps, timeouts, and memory thresholds.
	Inspection InspectionConfig `yaml:"inspection" mapstructure:"inspection"`

	// CA configures the root CA and leaf-certificate cache.
	CA CAConfigYAML `yaml:"ca" mapstructure:"ca"`

	// Telemetry configures the rolling JSONL log.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// Policy configures the admin-defined CEL override layer.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// Bootstrap carries the legacy bootstrap hints read directly from the
	// environment (MONITOR_MODE, ENFORCEMENT_MODE); settings pulled from the
	// control plane override these on first successful poll.
	Bootstrap BootstrapConfig `yaml:"bootstrap" mapstructure:"bootstrap"`

	// FailOpen controls behavior when the classifier errors out or exceeds
	// its inspection deadline. Default true (forward unchanged + log).
	FailOpen bool `yaml:"fail_open" mapstructure:"fail_open"`

	// StrictPinMode, when true, keeps deep-inspecting a host even after its
	// TLS handshake looked like certificate pinning.
	StrictPinMode bool `yaml:"strict_pin_mode" mapstructure:"strict_pin_mode"`

	// TraceMode enables verbose diagnostics (debug log level).
	TraceMode bool `yaml:"trace_mode" mapstructure:"trace_mode"`

	// DevMode enables development conveniences (verbose logging, relaxed
	// defaults).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the CONNECT listener.
type ServerConfig struct {
	// ListenAddr is the loopback address the proxy listens on.
	// Defaults to "127.0.0.1:8080".
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum slog level. Overridden to "debug" by TraceMode.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// ControlPlaneConfig configures the loopback control-plane client.
type ControlPlaneConfig struct {
	// APIBase is COMPLYZE_API: the base URL for the intercept-event endpoint.
	APIBase string `yaml:"api_base" mapstructure:"api_base" validate:"required,url"`

	// WorkspaceID is COMPLYZE_WORKSPACE (falling back to FIREBASE_UID).
	WorkspaceID string `yaml:"workspace_id" mapstructure:"workspace_id" validate:"required"`

	// SettingsPollInterval defaults to 10s.
	SettingsPollInterval string `yaml:"settings_poll_interval" mapstructure:"settings_poll_interval" validate:"omitempty"`

	// HeartbeatInterval defaults to 15s.
	HeartbeatInterval string `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval" validate:"omitempty"`

	// DeviceID identifies this proxy instance in heartbeats. Generated at
	// first run and persisted under the CA directory if not set explicitly.
	DeviceID string `yaml:"device_id" mapstructure:"device_id"`
}

// InspectionConfig configures body-size caps, timeouts, and resource limits.
type InspectionConfig struct {
	// MaxInspectionSizeMB is MAX_INSPECTION_SIZE_MB, default 15.
	MaxInspectionSizeMB int `yaml:"max_inspection_size_mb" mapstructure:"max_inspection_size_mb" validate:"omitempty,min=1"`

	// MaxBodySizeMB is MAX_BODY_SIZE_MB, default 50.
	MaxBodySizeMB int `yaml:"max_body_size_mb" mapstructure:"max_body_size_mb" validate:"omitempty,min=1"`

	// TimeoutMS is INSPECTION_TIMEOUT_MS, default 3000.
	TimeoutMS int `yaml:"inspection_timeout_ms" mapstructure:"inspection_timeout_ms" validate:"omitempty,min=1"`

	// MaxMemoryMB is MAX_MEMORY_MB, default 512.
	MaxMemoryMB int `yaml:"max_memory_mb" mapstructure:"max_memory_mb" validate:"omitempty,min=1"`

	// BulkThresholdChars resolves the spec's "bulk" open question: an
	// attachment whose extracted text exceeds this length counts as bulk
	// for the exposure-multiplier computation. Default 5000.
	BulkThresholdChars int `yaml:"bulk_threshold_chars" mapstructure:"bulk_threshold_chars" validate:"omitempty,min=1"`
}

// CAConfigYAML configures the root CA and leaf-certificate cache location.
type CAConfigYAML struct {
	// Dir is the directory holding ca-cert.pem / ca-key.pem.
	// Defaults to "~/.complyze-proxy".
	Dir string `yaml:"dir" mapstructure:"dir"`

	// LeafCacheSize bounds the in-memory leaf-certificate LRU. Default 2048.
	LeafCacheSize int `yaml:"leaf_cache_size" mapstructure:"leaf_cache_size" validate:"omitempty,min=1"`
}

// TelemetryConfig configures the rolling JSONL telemetry log.
type TelemetryConfig struct {
	// Dir is the directory holding the dated
	// proxy-telemetry-YYYY-MM-DD[-N].jsonl files.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// MaxFileSizeMB is the rotation threshold. Default 10.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"omitempty,min=1"`

	// RetainFiles is how many rotated files to keep. Default 5.
	RetainFiles int `yaml:"retain_files" mapstructure:"retain_files" validate:"omitempty,min=1"`

	// RemoteURL is validated as a URL when set but is not read anywhere;
	// telemetry entries are only written to the local files in Dir and are
	// not sent to a remote collector.
	RemoteURL string `yaml:"remote_url" mapstructure:"remote_url" validate:"omitempty,url"`
}

// PolicyConfig configures the admin-defined CEL override layer that sits
// above the canonical enforcement_mode resolution.
type PolicyConfig struct {
	// OverrideRulesFile is a YAML file of admin-defined CEL override rules.
	// Defaults to "override-rules.yaml" inside the CA directory; a missing
	// file simply means no overrides are loaded.
	OverrideRulesFile string `yaml:"override_rules_file" mapstructure:"override_rules_file"`
}

// BootstrapConfig carries legacy environment bootstrap hints, overridden by
// the first successful settings pull from the control plane.
type BootstrapConfig struct {
	// MonitorMode is MONITOR_MODE ∈ {observe, enforce}.
	MonitorMode string `yaml:"monitor_mode" mapstructure:"monitor_mode" validate:"omitempty,oneof=observe enforce"`

	// EnforcementMode is ENFORCEMENT_MODE ∈ {monitor, warn, redact, block}.
	EnforcementMode string `yaml:"enforcement_mode" mapstructure:"enforcement_mode" validate:"omitempty,oneof=monitor warn redact block"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.ControlPlane.APIBase == "" {
		c.ControlPlane.APIBase = "http://localhost:3737/api/proxy/intercept"
	}
	if c.ControlPlane.WorkspaceID == "" {
		c.ControlPlane.WorkspaceID = "default"
	}
	if c.ControlPlane.SettingsPollInterval == "" {
		c.ControlPlane.SettingsPollInterval = "10s"
	}
	if c.ControlPlane.HeartbeatInterval == "" {
		c.ControlPlane.HeartbeatInterval = "15s"
	}

	if c.Inspection.MaxInspectionSizeMB == 0 {
		c.Inspection.MaxInspectionSizeMB = 15
	}
	if c.Inspection.MaxBodySizeMB == 0 {
		c.Inspection.MaxBodySizeMB = 50
	}
	if c.Inspection.TimeoutMS == 0 {
		c.Inspection.TimeoutMS = 3000
	}
	if c.Inspection.MaxMemoryMB == 0 {
		c.Inspection.MaxMemoryMB = 512
	}
	if c.Inspection.BulkThresholdChars == 0 {
		c.Inspection.BulkThresholdChars = 5000
	}

	if c.CA.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.CA.Dir = filepath.Join(home, ".complyze-proxy")
		}
	}
	if c.CA.LeafCacheSize == 0 {
		c.CA.LeafCacheSize = 2048
	}

	if c.Telemetry.Dir == "" {
		c.Telemetry.Dir = c.CA.Dir
	}
	if c.Telemetry.MaxFileSizeMB == 0 {
		c.Telemetry.MaxFileSizeMB = 10
	}
	if c.Telemetry.RetainFiles == 0 {
		c.Telemetry.RetainFiles = 5
	}

	if c.Policy.OverrideRulesFile == "" && c.CA.Dir != "" {
		c.Policy.OverrideRulesFile = filepath.Join(c.CA.Dir, "override-rules.yaml")
	}

	// FailOpen defaults to true unless explicitly set false in YAML/env.
	// viper.IsSet distinguishes "not set" (zero value) from "explicitly false".
	if !viper.IsSet("fail_open") {
		c.FailOpen = true
	}
}

// SetDevDefaults applies permissive defaults for development mode, before
// validation, so a bare `complyze-proxy start --dev` works with no config.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Server.LogLevel == "info" {
		c.Server.LogLevel = "debug"
	}
}
