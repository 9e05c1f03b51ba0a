package config

import "testing"

func validConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

func TestValidate_DefaultsPass(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() on defaults = %v, want nil", err)
	}
}

func TestValidate_BadListenAddr(t *testing.T) {
	c := validConfig()
	c.Server.ListenAddr = "not-a-host-port"
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for bad listen_addr")
	}
}

func TestValidate_BadEnforcementMode(t *testing.T) {
	c := validConfig()
	c.Bootstrap.EnforcementMode = "allow"
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for invalid enforcement_mode")
	}
}

func TestValidate_MissingAPIBase(t *testing.T) {
	c := validConfig()
	c.ControlPlane.APIBase = ""
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for empty api_base")
	}
}
