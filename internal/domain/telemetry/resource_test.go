package telemetry

import (
	"testing"
	"time"
)

func testResourceMonitor(t *testing.T, thresholdMB int) (*ResourceMonitor, *Store) {
	t.Helper()

	store, err := NewStore(StoreConfig{
		Dir:           t.TempDir(),
		MaxFileSizeMB: 10,
		RetainFiles:   5,
		CacheSize:     16,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return &ResourceMonitor{
		Store:       store,
		Metrics:     NewMetrics(nil),
		Latency:     NewLatencyTracker(),
		Logger:      testLogger(),
		ThresholdMB: thresholdMB,
	}, store
}

func TestResourceMonitor_SampleAppendsMetricsSnapshot(t *testing.T) {
	mon, store := testResourceMonitor(t, 512)
	mon.Latency.Observe("text", 12)

	prevCPU := 0.0
	prevWall := time.Now().Add(-time.Second)
	mon.sample(time.Now(), &prevCPU, &prevWall)

	entries := store.Recent(10)
	var found bool
	for _, e := range entries {
		if e.Kind == KindMetricsSnapshot {
			found = true
			if e.MetricsSnapshot.TextLatency.Count != 1 {
				t.Errorf("TextLatency.Count = %d, want 1", e.MetricsSnapshot.TextLatency.Count)
			}
		}
	}
	if !found {
		t.Error("expected a metrics_snapshot entry to be appended")
	}
}

func TestResourceMonitor_SampleWarnsOnHeapOverThreshold(t *testing.T) {
	// A 1MB threshold is comfortably below any real test-process heap size,
	// so sample() should always emit a memory_limit entry.
	mon, store := testResourceMonitor(t, 1)

	prevCPU := 0.0
	prevWall := time.Now()
	mon.sample(time.Now(), &prevCPU, &prevWall)

	entries := store.Recent(10)
	var found bool
	for _, e := range entries {
		if e.Kind == KindMemoryLimit {
			found = true
			if e.MemoryLimit.ThresholdMB != 1 {
				t.Errorf("ThresholdMB = %d, want 1", e.MemoryLimit.ThresholdMB)
			}
		}
	}
	if !found {
		t.Error("expected a memory_limit entry when heap exceeds the threshold")
	}
}
