// Package httpgw is the inbound HTTP(S) interception gateway: it accepts
// CONNECT tunnels on the loopback proxy port and dispatches each one to a
// transparent tunnel, a metadata-only tunnel, or full MITM inspection
// (spec §4.1).
package httpgw

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/complyze/ai-proxy/internal/domain/destination"
	"github.com/complyze/ai-proxy/internal/domain/pinning"
	"github.com/complyze/ai-proxy/internal/domain/settings"
	"github.com/complyze/ai-proxy/internal/domain/telemetry"
)

// dispatchMode is the router's per-CONNECT decision, distinct from
// pinning.Mode (the persisted per-host pinning-failure state).
type dispatchMode int

const (
	dispatchPlain dispatchMode = iota
	dispatchMetadata
	dispatchInspect
)

// tunnelIdleTimeout bounds plain/metadata tunnels; inspect-mode TLS
// connections carry no deadline (spec §4.2, §4.3).
const tunnelIdleTimeout = 30 * time.Second

// Router is the CONNECT entry point and local endpoint server.
type Router struct {
	Tunneler      *Tunneler
	Terminator    *Terminator
	Pinning       *pinning.Registry
	Settings      *settings.Snapshot
	Store         *telemetry.Store
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
	CACertPEM     func() []byte
	StrictPinMode bool
}

// ServeHTTP dispatches CONNECT requests and serves /proxy.pac and
// /proxy/metrics.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodConnect:
		rt.handleConnect(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/proxy.pac":
		servePAC(w)
	case r.Method == http.MethodGet && r.URL.Path == "/proxy/metrics":
		rt.serveMetrics(w)
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) handleConnect(w http.ResponseWriter, r *http.Request) {
	host, err := splitConnectHost(r.Host)
	if err != nil {
		// Malformed authority fails open to a plain tunnel (spec §4.1).
		rt.Logger.Warn("malformed CONNECT authority, falling back to plain tunnel", "host", r.Host, "error", err)
		rt.Tunneler.Serve(w, r, host, false)
		return
	}

	s := rt.Settings.Load()
	pinState := rt.Pinning.Get(host).Mode
	mode := decideRoute(host, r.Header.Get("User-Agent"), s, pinState, rt.StrictPinMode)

	switch mode {
	case dispatchInspect:
		rt.Metrics.ConnectionsTotal.WithLabelValues("mitm").Inc()
		rt.Terminator.Serve(w, r, host)
	case dispatchMetadata:
		rt.Metrics.ConnectionsTotal.WithLabelValues("tunnel").Inc()
		rt.Tunneler.Serve(w, r, host, true)
	default:
		rt.Metrics.ConnectionsTotal.WithLabelValues("tunnel").Inc()
		rt.Tunneler.Serve(w, r, host, false)
	}
}

// decideRoute implements the five-branch dispatch table from spec §4.1.
func decideRoute(host, userAgent string, s settings.Settings, pinState pinning.Mode, strictPinMode bool) dispatchMode {
	class := destination.Classify(host)

	if destination.IsLoopbackOrLocal(host) || class == destination.ClassPassthrough {
		return dispatchPlain
	}

	isAIDomain := class == destination.ClassAPI || class == destination.ClassWebUI
	if !s.ProxyEnabled && isAIDomain {
		return dispatchMetadata
	}

	if class == destination.ClassAPI {
		pinAllowsInspect := pinState != pinning.ModeMetadataOnly || strictPinMode
		desktopBypassClause := s.DesktopBypass && !looksLikeBrowser(userAgent) && destination.IsDesktopApp(host)
		if pinAllowsInspect && !desktopBypassClause {
			return dispatchInspect
		}
		return dispatchMetadata
	}

	if class == destination.ClassWebUI {
		return dispatchMetadata
	}

	return dispatchPlain
}

// looksLikeBrowser reports whether a User-Agent string looks like an
// interactive browser rather than a desktop app's embedded HTTP client.
func looksLikeBrowser(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, marker := range []string{"mozilla", "chrome", "safari", "firefox", "edg/"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

// metricsSnapshot is the JSON body served at GET /proxy/metrics (spec §4.1).
type metricsSnapshot struct {
	Status string            `json:"status"`
	Recent []telemetry.Entry `json:"recent"`
}

func (rt *Router) serveMetrics(w http.ResponseWriter) {
	snap := metricsSnapshot{Status: "ok"}
	if rt.Store != nil {
		snap.Recent = rt.Store.Recent(100)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		rt.Logger.Warn("failed to encode metrics snapshot", "error", err)
	}
}

func servePAC(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-ns-proxy-autoconfig")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(pacScript))
}

// pacScript directs known AI domains to the proxy and everything else
// direct, so the proxy only ever sees relevant traffic.
const pacScript = `function FindProxyForURL(url, host) {
    var aiDomains = [
        "api.openai.com", "api.anthropic.com", "api.cohere.ai", "api.mistral.ai",
        "generativelanguage.googleapis.com", "api.together.xyz", "api.groq.com",
        "api.perplexity.ai", "chatgpt.com", "chat.openai.com", "claude.ai",
        "perplexity.ai", "gemini.google.com", "copilot.microsoft.com"
    ];
    for (var i = 0; i < aiDomains.length; i++) {
        if (dnsDomainIs(host, aiDomains[i])) {
            return "PROXY 127.0.0.1:8080";
        }
    }
    return "DIRECT";
}
`
