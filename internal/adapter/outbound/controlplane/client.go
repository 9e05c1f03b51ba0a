// Package controlplane is the outbound HTTP client for the local control
// plane: it pulls admin-configured settings, posts heartbeats, and reports
// per-request activity events, all best-effort (spec §4.8).
package controlplane

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/complyze/ai-proxy/internal/domain/settings"
	"github.com/complyze/ai-proxy/internal/domain/telemetry"
)

const maxResponseBodySize = 1 * 1024 * 1024 // 1MB

// Client talks to the local Complyze control plane over plain HTTP(S)
// JSON endpoints.
type Client struct {
	apiBase     string
	workspaceID string
	deviceID    string
	httpClient  *http.Client
}

// NewClient builds a Client with a hardened default transport, matching
// the proxy's own minimum TLS floor.
func NewClient(apiBase, workspaceID, deviceID string) *Client {
	return &Client{
		apiBase:     apiBase,
		workspaceID: workspaceID,
		deviceID:    deviceID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// settingsResponse mirrors the control plane's GET /api/proxy/settings body.
type settingsResponse struct {
	ProxyEnabled       bool   `json:"proxy_enabled"`
	EnforcementMode    string `json:"enforcement_mode"`
	BlockHighRisk      bool   `json:"block_high_risk"`
	RedactSensitive    bool   `json:"redact_sensitive"`
	InspectAttachments bool   `json:"inspect_attachments"`
	DesktopBypass      bool   `json:"desktop_bypass"`
	FullAuditMode      bool   `json:"full_audit_mode"`
	RetentionDays      int    `json:"retention_days"`
	ProxyEndpoint      string `json:"proxy_endpoint"`
}

// PollSettings fetches the latest admin settings for this workspace.
func (c *Client) PollSettings(ctx context.Context) (*settings.Settings, error) {
	endpoint, err := c.endpointWithWorkspace("/api/proxy/settings")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build settings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("settings request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read settings response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("settings request: http status %d", resp.StatusCode)
	}

	var sr settingsResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode settings response: %w", err)
	}

	s := &settings.Settings{
		ProxyEnabled:       sr.ProxyEnabled,
		EnforcementMode:    settings.EnforcementMode(sr.EnforcementMode),
		BlockHighRisk:      sr.BlockHighRisk,
		RedactSensitive:    sr.RedactSensitive,
		InspectAttachments: sr.InspectAttachments,
		DesktopBypass:      sr.DesktopBypass,
		FullAuditMode:      sr.FullAuditMode,
		RetentionDays:      sr.RetentionDays,
		ProxyEndpoint:      sr.ProxyEndpoint,
	}
	return s, nil
}

// Heartbeat posts a liveness ping for this device.
func (c *Client) Heartbeat(ctx context.Context) error {
	endpoint := c.apiBase
	if u, err := baseURL(c.apiBase); err == nil {
		u.Path = "/api/agent/heartbeat"
		u.RawQuery = ""
		endpoint = u.String()
	}

	payload := map[string]string{
		"workspace_id": c.workspaceID,
		"device_id":    c.deviceID,
	}
	return c.postJSON(ctx, endpoint, payload)
}

// PostEvent reports a single activity event to the control plane's
// interception endpoint. Failures are returned to the caller but must
// never block request forwarding; callers should log and continue.
func (c *Client) PostEvent(ctx context.Context, ev telemetry.ActivityEvent) error {
	endpoint, err := c.endpointWithWorkspace("/api/proxy/intercept")
	if err != nil {
		return err
	}
	return c.postJSON(ctx, endpoint, ev)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post request: http status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) endpointWithWorkspace(path string) (string, error) {
	u, err := baseURL(c.apiBase)
	if err != nil {
		return "", err
	}
	u.Path = path
	q := u.Query()
	q.Set("workspaceId", c.workspaceID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func baseURL(apiBase string) (*url.URL, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", apiBase, err)
	}
	return u, nil
}
