package httpgw

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Sentinel errors surfaced by the router and terminator.
var (
	errHijackUnsupported = errors.New("httpgw: response writer does not support hijacking")
	errMalformedConnect  = errors.New("httpgw: malformed CONNECT authority")
)

// writeJSONError writes a JSON error body with the given status code,
// matching the shapes described in spec §4.6 (403 blocked, 299 warn,
// 413 size, 502 upstream, 503 fail-closed).
func writeJSONError(w http.ResponseWriter, status int, errCode, reason string, extra map[string]any) {
	body := map[string]any{
		"error":  errCode,
		"reason": reason,
	}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeBlocked writes the 403 body for a critical-risk block decision.
func writeBlocked(w http.ResponseWriter, riskCategory, enforcementMode string) {
	writeJSONError(w, http.StatusForbidden, "blocked", "request blocked by data loss prevention policy", map[string]any{
		"risk_category":    riskCategory,
		"blocked":          true,
		"enforcement_mode": enforcementMode,
	})
}

// writeWarn writes the 299 override-allowed body for warn mode.
func writeWarn(w http.ResponseWriter, riskCategory string) {
	w.Header().Set("X-Complyze-Warning", "true")
	w.Header().Set("X-Complyze-Enforcement", "warn")
	writeJSONError(w, 299, "warn", "sensitive content detected; resend with override to proceed", map[string]any{
		"risk_category": riskCategory,
		"override":      true,
	})
}

// writeSizeLimit writes the 413 body for an oversize request body.
func writeSizeLimit(w http.ResponseWriter, reason string) {
	writeJSONError(w, http.StatusRequestEntityTooLarge, "size_limit", reason, nil)
}

// writeUpstreamError writes the 502 body for an upstream connection or
// handshake failure before response headers were received.
func writeUpstreamError(w http.ResponseWriter, reason string) {
	writeJSONError(w, http.StatusBadGateway, "upstream_error", reason, nil)
}

// writeFailClosed writes the 503 body used when FAIL_OPEN=false and the
// classifier errored or timed out.
func writeFailClosed(w http.ResponseWriter, reason string) {
	writeJSONError(w, http.StatusServiceUnavailable, "fail_closed", reason, nil)
}
