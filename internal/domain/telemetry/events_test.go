package telemetry

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEntry_OnlyActivePayloadMarshals(t *testing.T) {
	e := Entry{
		Kind:      KindEnforcementDecision,
		Timestamp: time.Now(),
		EnforcementDecision: &EnforcementDecision{
			Hostname:         "api.openai.com",
			Categories:       []string{"pii"},
			SensitivityScore: 60,
			RiskCategory:     "high",
		},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if _, ok := decoded["enforcement_decision"]; !ok {
		t.Error("expected enforcement_decision field to be present")
	}
	for _, field := range []string{"proxy_start", "inspection_error", "size_limit", "metrics_snapshot", "memory_limit", "activity"} {
		if _, ok := decoded[field]; ok {
			t.Errorf("expected %s to be omitted, found in output", field)
		}
	}
}
