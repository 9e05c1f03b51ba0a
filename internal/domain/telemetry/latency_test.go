package telemetry

import "testing"

func TestLatencyTracker_ObserveAndSnapshot(t *testing.T) {
	lt := NewLatencyTracker()
	lt.Observe("text", 10)
	lt.Observe("text", 30)
	lt.Observe("text", 20)

	got := lt.SnapshotAndReset("text")
	if got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}
	if got.AvgMS != 20 {
		t.Errorf("AvgMS = %v, want 20", got.AvgMS)
	}
	if got.MinMS != 10 {
		t.Errorf("MinMS = %v, want 10", got.MinMS)
	}
	if got.MaxMS != 30 {
		t.Errorf("MaxMS = %v, want 30", got.MaxMS)
	}
}

func TestLatencyTracker_SnapshotResetsBucket(t *testing.T) {
	lt := NewLatencyTracker()
	lt.Observe("attachment", 100)
	_ = lt.SnapshotAndReset("attachment")

	got := lt.SnapshotAndReset("attachment")
	if got.Count != 0 {
		t.Errorf("expected an empty bucket after reset, got %+v", got)
	}
}

func TestLatencyTracker_UnobservedClassIsZero(t *testing.T) {
	lt := NewLatencyTracker()
	got := lt.SnapshotAndReset("text")
	if got.Count != 0 {
		t.Errorf("expected zero-value bucket, got %+v", got)
	}
}
