// Package telemetry defines the structured event types reported to the
// rolling JSONL log and the control-plane event endpoint (spec §3, §4.9).
package telemetry

import "time"

// EventKind distinguishes the required JSONL entry kinds from spec §4.9.
type EventKind string

const (
	KindProxyStart          EventKind = "proxy_start"
	KindEnforcementDecision EventKind = "enforcement_decision"
	KindInspectionError     EventKind = "inspection_error"
	KindSizeLimit           EventKind = "size_limit"
	KindMetricsSnapshot     EventKind = "metrics_snapshot"
	KindMemoryLimit         EventKind = "memory_limit"
	KindActivity            EventKind = "activity"
)

// Entry is one JSON line written to the rolling telemetry log. Exactly one
// of the payload fields is populated per Kind.
type Entry struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	ProxyStart          *ProxyStart          `json:"proxy_start,omitempty"`
	EnforcementDecision *EnforcementDecision `json:"enforcement_decision,omitempty"`
	InspectionError     *InspectionError     `json:"inspection_error,omitempty"`
	SizeLimit           *SizeLimit           `json:"size_limit,omitempty"`
	MetricsSnapshot     *MetricsSnapshot     `json:"metrics_snapshot,omitempty"`
	MemoryLimit         *MemoryLimit         `json:"memory_limit,omitempty"`
	Activity            *ActivityEvent       `json:"activity,omitempty"`
}

// ProxyStart is logged once at boot.
type ProxyStart struct {
	OS           string `json:"os"`
	Hostname     string `json:"hostname"`
	ProxyPort    int    `json:"proxy_port"`
	MonitorMode  string `json:"monitor_mode"`
	FailOpen     bool   `json:"fail_open"`
	Version      string `json:"version"`
}

// EnforcementDecision is logged for every sensitive request (spec §4.6).
type EnforcementDecision struct {
	Hostname          string   `json:"hostname"`
	Path              string   `json:"path"`
	Categories        []string `json:"categories"`
	SensitivityScore  int      `json:"sensitivity_score"`
	RiskCategory      string   `json:"risk_category"`
	REUScore          float64  `json:"reu_score"`
	EnforcementMode   string   `json:"enforcement_mode"`
	EnforcementAction string   `json:"enforcement_action,omitempty"`
}

// InspectionError is logged on classifier error/timeout.
type InspectionError struct {
	RequestID     string `json:"request_id"`
	Hostname      string `json:"hostname"`
	FileSize      int64  `json:"file_size"`
	ErrorMessage  string `json:"error_message"`
	InspectionMS  int64  `json:"inspection_ms"`
	FailOpen      bool   `json:"fail_open"`
	Action        string `json:"action"`
}

// SizeLimitReason enumerates the two size-violation causes.
type SizeLimitReason string

const (
	ReasonBodyTooLarge          SizeLimitReason = "body_too_large"
	ReasonAttachmentSizeLimited SizeLimitReason = "attachment_size_limit"
)

// SizeLimit is logged on oversize body/attachment rejection.
type SizeLimit struct {
	Reason      SizeLimitReason `json:"reason"`
	Hostname    string          `json:"hostname"`
	DeclaredLen int64           `json:"declared_len"`
}

// LatencyBucket summarizes inspection latency for one body class.
type LatencyBucket struct {
	Count int64   `json:"count"`
	AvgMS float64 `json:"avg_ms"`
	MinMS float64 `json:"min_ms"`
	MaxMS float64 `json:"max_ms"`
}

// MetricsSnapshot is logged every 30s.
type MetricsSnapshot struct {
	CPUPercent    float64       `json:"cpu_percent"`
	RSSBytes      uint64        `json:"rss_bytes"`
	HeapBytes     uint64        `json:"heap_bytes"`
	TextLatency   LatencyBucket `json:"text_latency"`
	AttachLatency LatencyBucket `json:"attachment_latency"`
}

// MemoryLimit is logged whenever heap exceeds the configured threshold.
type MemoryLimit struct {
	HeapBytes     uint64 `json:"heap_bytes"`
	ThresholdMB   int    `json:"threshold_mb"`
}

// ActivityEvent mirrors spec §3's ActivityEvent, posted to the control
// plane per inspected request and optionally mirrored to the local log.
type ActivityEvent struct {
	ID                         string   `json:"id"`
	Tool                       string   `json:"tool"`
	ToolDomain                 string   `json:"tool_domain"`
	UserHash                   string   `json:"user_hash"`
	PromptHash                 string   `json:"prompt_hash"`
	PromptLength               int      `json:"prompt_length"`
	TokenCountEstimate         int      `json:"token_count_estimate"`
	APIEndpoint                string   `json:"api_endpoint"`
	SensitivityScore           int      `json:"sensitivity_score"`
	SensitivityCategories      []string `json:"sensitivity_categories"`
	PolicyViolationFlag        bool     `json:"policy_violation_flag"`
	RiskCategory               string   `json:"risk_category"`
	Timestamp                  string   `json:"timestamp"`
	Blocked                    *bool    `json:"blocked,omitempty"`
	EnforcementAction          string   `json:"enforcement_action,omitempty"`
	AttachmentInspectionEnabled bool    `json:"attachment_inspection_enabled"`
	FullPrompt                 string   `json:"full_prompt,omitempty"`

	// Body carries the literal request body shape used for CONNECT/tunnel
	// events, e.g. "[metadata-only: <host>]" or "[attachment: <N> bytes —
	// skipped]" (spec §4.2, §4.10 scenarios).
	Method string `json:"method,omitempty"`
	Body   string `json:"body,omitempty"`
}
