// Package policy computes the Risk-Exposure Unit for a classified request
// and resolves the enforcement action to apply, per spec §4.6.
package policy

import (
	"time"

	"github.com/complyze/ai-proxy/internal/domain/classify"
	"github.com/complyze/ai-proxy/internal/domain/destination"
	"github.com/complyze/ai-proxy/internal/domain/settings"
)

// Action is one of the four canonical enforcement actions resolved for a
// single request.
type Action string

const (
	ActionMonitor Action = "monitor"
	ActionWarn    Action = "warn"
	ActionRedact  Action = "redact"
	ActionBlock   Action = "block"
)

// Exposure is the exposure multiplier class for the REU computation.
type Exposure string

const (
	ExposureTextOnly   Exposure = "text_only"
	ExposureAttachment Exposure = "attachment"
	ExposureBulk       Exposure = "bulk"
	ExposureBlocked    Exposure = "blocked"
)

// exposureMultiplier maps an Exposure to its REU multiplier (EM).
func exposureMultiplier(e Exposure) float64 {
	switch e {
	case ExposureTextOnly:
		return 2.0
	case ExposureAttachment:
		return 5.0
	case ExposureBulk:
		return 10.0
	case ExposureBlocked:
		return 1.0
	default:
		return 2.0
	}
}

// destinationMultiplier maps a destination.Multiplier to its float value
// (DM), reusing the destination package's named constants directly.
func destinationMultiplier(m destination.Multiplier) float64 {
	return float64(m)
}

// Decision is the outcome of evaluating one classified request.
type Decision struct {
	Action          Action
	REU             float64
	Sensitive       bool
	RedactedBody    []byte
	WarnOverride    bool
	Blocked         bool
	EnforcementMode settings.EnforcementMode
}

// EnforcementDecisionEvent mirrors the telemetry record logged for every
// sensitive request (spec §4.6 / §4.9).
type EnforcementDecisionEvent struct {
	Hostname        string
	Path            string
	DetectionResult classify.Result
	REUScore        float64
	EnforcementMode settings.EnforcementMode
	EnforcementAction Action
	Timestamp       time.Time
}
