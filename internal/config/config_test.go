package config

import "testing"

func TestSetDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()

	if c.Server.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("ListenAddr default = %q, want 127.0.0.1:8080", c.Server.ListenAddr)
	}
	if c.ControlPlane.APIBase != "http://localhost:3737/api/proxy/intercept" {
		t.Errorf("APIBase default = %q", c.ControlPlane.APIBase)
	}
	if c.ControlPlane.WorkspaceID != "default" {
		t.Errorf("WorkspaceID default = %q, want default", c.ControlPlane.WorkspaceID)
	}
	if c.Inspection.MaxInspectionSizeMB != 15 {
		t.Errorf("MaxInspectionSizeMB default = %d, want 15", c.Inspection.MaxInspectionSizeMB)
	}
	if c.Inspection.MaxBodySizeMB != 50 {
		t.Errorf("MaxBodySizeMB default = %d, want 50", c.Inspection.MaxBodySizeMB)
	}
	if c.Inspection.BulkThresholdChars != 5000 {
		t.Errorf("BulkThresholdChars default = %d, want 5000", c.Inspection.BulkThresholdChars)
	}
	if !c.FailOpen {
		t.Error("FailOpen default should be true")
	}
	if c.CA.LeafCacheSize != 2048 {
		t.Errorf("LeafCacheSize default = %d, want 2048", c.CA.LeafCacheSize)
	}
	if c.Telemetry.MaxFileSizeMB != 10 || c.Telemetry.RetainFiles != 5 {
		t.Errorf("telemetry defaults = %+v", c.Telemetry)
	}
}

func TestSetDevDefaults_NoOpWhenDisabled(t *testing.T) {
	c := Config{Server: ServerConfig{LogLevel: "info"}}
	c.SetDevDefaults()
	if c.Server.LogLevel != "info" {
		t.Errorf("dev defaults applied without DevMode set")
	}
}

func TestSetDevDefaults_BumpsLogLevel(t *testing.T) {
	c := Config{DevMode: true, Server: ServerConfig{LogLevel: "info"}}
	c.SetDevDefaults()
	if c.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", c.Server.LogLevel)
	}
}
