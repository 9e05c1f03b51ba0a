package controlplane

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/complyze/ai-proxy/internal/domain/settings"
	"github.com/complyze/ai-proxy/internal/domain/telemetry"
)

func TestClient_PollSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/proxy/settings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("workspaceId"); got != "ws-1" {
			t.Errorf("workspaceId = %q, want ws-1", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"proxy_enabled":       true,
			"enforcement_mode":    "block",
			"inspect_attachments": true,
			"retention_days":      14,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/proxy/settings", "ws-1", "dev-1")
	s, err := c.PollSettings(t.Context())
	if err != nil {
		t.Fatalf("PollSettings() error = %v", err)
	}
	if !s.ProxyEnabled || s.EnforcementMode != settings.EnforcementBlock || s.RetentionDays != 14 {
		t.Errorf("PollSettings() = %+v, unexpected values", s)
	}
}

func TestClient_PollSettings_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ws-1", "dev-1")
	if _, err := c.PollSettings(t.Context()); err == nil {
		t.Error("expected an error on non-2xx settings response")
	}
}

func TestClient_Heartbeat(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agent/heartbeat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/proxy/settings", "ws-1", "dev-1")
	if err := c.Heartbeat(t.Context()); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if gotBody["workspace_id"] != "ws-1" || gotBody["device_id"] != "dev-1" {
		t.Errorf("unexpected heartbeat payload: %+v", gotBody)
	}
}

func TestClient_PostEvent(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/proxy/intercept", "ws-1", "dev-1")
	ev := telemetry.ActivityEvent{ID: "evt-1", Tool: "chatgpt"}
	if err := c.PostEvent(t.Context(), ev); err != nil {
		t.Fatalf("PostEvent() error = %v", err)
	}
	if gotQuery.Get("workspaceId") != "ws-1" {
		t.Errorf("workspaceId query = %q, want ws-1", gotQuery.Get("workspaceId"))
	}
}
