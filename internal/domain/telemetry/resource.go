package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// ResourceMonitor periodically emits metrics_snapshot and memory_limit
// telemetry entries (spec §4.9): CPU%, RSS/heap, per-class inspection
// latency, and a warning whenever heap usage crosses the configured
// threshold.
type ResourceMonitor struct {
	Store       *Store
	Metrics     *Metrics
	Latency     *LatencyTracker
	Logger      *slog.Logger
	ThresholdMB int // MAX_MEMORY_MB, default 512
}

// Run ticks every interval until ctx is canceled, appending one
// metrics_snapshot entry and, when heap exceeds ThresholdMB, one
// memory_limit entry plus a warning log line.
func (m *ResourceMonitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prevCPU, _ := processCPUSeconds()
	prevWall := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.sample(now, &prevCPU, &prevWall)
		}
	}
}

func (m *ResourceMonitor) sample(now time.Time, prevCPU *float64, prevWall *time.Time) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	cpuPercent := 0.0
	if cur, err := processCPUSeconds(); err == nil {
		wallElapsed := now.Sub(*prevWall).Seconds()
		if wallElapsed > 0 {
			cpuPercent = (cur - *prevCPU) / wallElapsed * 100
		}
		*prevCPU = cur
		*prevWall = now
	}

	rss := mem.Sys
	if v, err := processRSSBytes(); err == nil {
		rss = v
	}

	snapshot := &MetricsSnapshot{
		CPUPercent:    cpuPercent,
		RSSBytes:      rss,
		HeapBytes:     mem.HeapAlloc,
		TextLatency:   m.Latency.SnapshotAndReset("text"),
		AttachLatency: m.Latency.SnapshotAndReset("attachment"),
	}
	m.append(Entry{Kind: KindMetricsSnapshot, Timestamp: now.UTC(), MetricsSnapshot: snapshot})

	thresholdMB := m.ThresholdMB
	if thresholdMB <= 0 {
		thresholdMB = 512
	}
	if mem.HeapAlloc > uint64(thresholdMB)<<20 {
		m.Logger.Warn("heap usage exceeds configured threshold",
			"heap_bytes", mem.HeapAlloc, "threshold_mb", thresholdMB)
		m.append(Entry{
			Kind:      KindMemoryLimit,
			Timestamp: now.UTC(),
			MemoryLimit: &MemoryLimit{
				HeapBytes:   mem.HeapAlloc,
				ThresholdMB: thresholdMB,
			},
		})
	}
}

func (m *ResourceMonitor) append(e Entry) {
	if m.Store == nil {
		return
	}
	if err := m.Store.Append(e); err != nil {
		if m.Metrics != nil {
			m.Metrics.TelemetryDropsTotal.Inc()
		}
		m.Logger.Warn("telemetry append failed", "kind", e.Kind, "error", err)
	}
}
