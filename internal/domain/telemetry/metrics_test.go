package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics_RegistersWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ConnectionsTotal.WithLabelValues("mitm").Inc()
	m.EnforcementActions.WithLabelValues("block").Inc()
	m.TunnelBypassesTotal.Inc()
	m.ActiveConnections.Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family")
	}
}

func TestMetrics_EnforcementActionsCountPerLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.EnforcementActions.WithLabelValues("redact").Inc()
	m.EnforcementActions.WithLabelValues("redact").Inc()
	m.EnforcementActions.WithLabelValues("block").Inc()

	var redact dto.Metric
	if err := m.EnforcementActions.WithLabelValues("redact").Write(&redact); err != nil {
		t.Fatal(err)
	}
	if got := redact.Counter.GetValue(); got != 2 {
		t.Errorf("redact count = %v, want 2", got)
	}

	var block dto.Metric
	if err := m.EnforcementActions.WithLabelValues("block").Write(&block); err != nil {
		t.Fatal(err)
	}
	if got := block.Counter.GetValue(); got != 1 {
		t.Errorf("block count = %v, want 1", got)
	}
}
