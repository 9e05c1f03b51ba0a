package controlplane

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/complyze/ai-proxy/internal/domain/settings"
)

func TestPoller_FirstPollForcesAttachmentInspectionOff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"proxy_enabled":       true,
			"enforcement_mode":    "monitor",
			"inspect_attachments": true,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws-1", "dev-1")
	snap := settings.NewSnapshot()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPoller(client, snap, time.Hour, time.Hour, logger)
	p.pollOnce(context.Background())

	got := snap.Load()
	if got.InspectAttachments {
		t.Error("expected InspectAttachments to be forced false on first successful poll")
	}
	if !got.ProxyEnabled {
		t.Error("expected ProxyEnabled to reflect the polled value")
	}
}

func TestPoller_FailedPollKeepsPreviousSnapshot(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws-1", "dev-1")
	snap := settings.NewSnapshot()
	before := snap.Load()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPoller(client, snap, time.Hour, time.Hour, logger)
	p.pollOnce(context.Background())

	after := snap.Load()
	if before != after {
		t.Errorf("expected snapshot to be unchanged after a failed poll, before=%+v after=%+v", before, after)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly one poll attempt, got %d", calls)
	}
}

func TestPoller_RunStopsTickersOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"proxy_enabled": true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "ws-1", "dev-1")
	snap := settings.NewSnapshot()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := NewPoller(client, snap, 5*time.Millisecond, 5*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
