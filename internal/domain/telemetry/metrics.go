package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the proxy. GET /proxy/metrics
// does not serve them; that route returns recent telemetry entries.
type Metrics struct {
	ConnectionsTotal    *prometheus.CounterVec
	InspectionDuration  *prometheus.HistogramVec
	EnforcementActions  *prometheus.CounterVec
	CategoriesDetected  *prometheus.CounterVec
	TunnelBypassesTotal prometheus.Counter
	TelemetryDropsTotal prometheus.Counter
	InspectionSlowTotal prometheus.Counter
	ActiveConnections   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "complyze_proxy",
				Name:      "connections_total",
				Help:      "Total CONNECT tunnels handled",
			},
			[]string{"mode"}, // mode=mitm/tunnel
		),
		InspectionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "complyze_proxy",
				Name:      "inspection_duration_seconds",
				Help:      "Body inspection duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"body_class"}, // body_class=text/attachment
		),
		EnforcementActions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "complyze_proxy",
				Name:      "enforcement_actions_total",
				Help:      "Total enforcement actions recorded",
			},
			[]string{"action"}, // action=monitor/warn/redact/block
		),
		CategoriesDetected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "complyze_proxy",
				Name:      "categories_detected_total",
				Help:      "Total sensitive category detections",
			},
			[]string{"category"},
		),
		TunnelBypassesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "complyze_proxy",
				Name:      "tunnel_bypasses_total",
				Help:      "Total CONNECT tunnels relayed in metadata-only mode",
			},
		),
		TelemetryDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "complyze_proxy",
				Name:      "telemetry_drops_total",
				Help:      "Total telemetry entries dropped due to write failures",
			},
		),
		InspectionSlowTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "complyze_proxy",
				Name:      "inspection_slow_total",
				Help:      "Total inspections exceeding the 300ms latency warning threshold",
			},
		),
		ActiveConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "complyze_proxy",
				Name:      "active_connections",
				Help:      "Number of currently open proxy connections",
			},
		),
	}
}
