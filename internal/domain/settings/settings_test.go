package settings

import "testing"

func TestResolveEnforcementMode_CanonicalWins(t *testing.T) {
	s := Settings{EnforcementMode: EnforcementWarn, BlockHighRisk: true}
	if got := s.ResolveEnforcementMode(); got != EnforcementWarn {
		t.Errorf("got %v, want warn", got)
	}
}

func TestResolveEnforcementMode_LegacyFallback(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
		want EnforcementMode
	}{
		{"invalid canonical falls to block_high_risk", Settings{EnforcementMode: "bogus", BlockHighRisk: true}, EnforcementBlock},
		{"absent canonical falls to redact_sensitive", Settings{RedactSensitive: true}, EnforcementRedact},
		{"no signal defaults to monitor", Settings{}, EnforcementMonitor},
	}
	for _, tt := range tests {
		if got := tt.s.ResolveEnforcementMode(); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSnapshot_LoadStore(t *testing.T) {
	snap := NewSnapshot()
	if snap.Load().ProxyEnabled {
		t.Error("default snapshot should have ProxyEnabled=false")
	}
	snap.Store(Settings{ProxyEnabled: true, EnforcementMode: EnforcementBlock})
	if got := snap.Load(); !got.ProxyEnabled || got.EnforcementMode != EnforcementBlock {
		t.Errorf("got %+v after Store", got)
	}
}
