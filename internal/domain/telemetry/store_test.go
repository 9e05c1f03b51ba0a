package telemetry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_AppendAndRecent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(StoreConfig{Dir: dir, MaxFileSizeMB: 10, RetainFiles: 5, CacheSize: 10}, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	for i := 0; i < 3; i++ {
		e := Entry{Kind: KindActivity, Timestamp: time.Now()}
		if err := s.Append(e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	recent := s.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d entries, want 2", len(recent))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one telemetry file on disk")
	}
}

func TestStore_SizeRotation(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(StoreConfig{Dir: dir, MaxFileSizeMB: 0, RetainFiles: 5, CacheSize: 10}, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()
	s.maxFileSize = 10 // force rotation almost immediately

	for i := 0; i < 5; i++ {
		if err := s.Append(Entry{Kind: KindActivity, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("expected size rotation to produce multiple files, got %d", len(entries))
	}
}

func TestStore_RetentionKeepsOnlyRetainFiles(t *testing.T) {
	dir := t.TempDir()
	// Pre-seed more rotated files than the retention count.
	for i := 1; i <= 7; i++ {
		name := filepath.Join(dir, "proxy-telemetry-2026-01-01-"+itoa(i)+".jsonl")
		if err := os.WriteFile(name, []byte("{}\n"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	s, err := NewStore(StoreConfig{Dir: dir, MaxFileSizeMB: 10, RetainFiles: 3, CacheSize: 10}, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	// Today's freshly opened file counts toward RetainFiles, so 2 pre-seeded
	// files + today's file = 3.
	if len(entries) > 3 {
		t.Errorf("expected retention to prune old files, found %d entries", len(entries))
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestRingCache_WrapsAndOrdersNewestFirst(t *testing.T) {
	c := newRingCache(3)
	for i := 0; i < 5; i++ {
		c.Add(Entry{Kind: EventKind(itoa(i))})
	}
	recent := c.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) returned %d entries, want 3", len(recent))
	}
	for i, want := range []EventKind{"4", "3", "2"} {
		if recent[i].Kind != want {
			t.Errorf("Recent(3)[%d].Kind = %q, want %q", i, recent[i].Kind, want)
		}
	}
}
