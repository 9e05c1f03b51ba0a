package policy

import (
	"github.com/complyze/ai-proxy/internal/domain/classify"
	"github.com/complyze/ai-proxy/internal/domain/destination"
	"github.com/complyze/ai-proxy/internal/domain/settings"
)

// Sensitive reports whether a classification result counts as "sensitive"
// for enforcement purposes: any non-"none" category detected.
func Sensitive(r classify.Result) bool {
	if len(r.CategoriesDetected) == 0 {
		return false
	}
	return !(len(r.CategoriesDetected) == 1 && r.CategoriesDetected[0] == classify.CategoryNone)
}

// ComputeREU computes the Risk-Exposure Unit: sensitivity_points × EM × DM.
func ComputeREU(r classify.Result, exposure Exposure, destMultiplier destination.Multiplier) float64 {
	return float64(r.SensitivityScore) * exposureMultiplier(exposure) * destinationMultiplier(destMultiplier)
}

// Evaluate resolves the enforcement action for a classified request given
// the active settings, per spec §4.6. It does not itself perform redaction
// of a request body; callers invoke Redact separately when Action is
// ActionRedact.
func Evaluate(r classify.Result, exposure Exposure, destMultiplier destination.Multiplier, s settings.Settings) Decision {
	mode := s.ResolveEnforcementMode()
	sensitive := Sensitive(r)
	reu := ComputeREU(r, exposure, destMultiplier)

	d := Decision{
		REU:             reu,
		Sensitive:       sensitive,
		EnforcementMode: mode,
	}

	switch mode {
	case settings.EnforcementMonitor:
		// enforcement_action is only recorded when the request was
		// sensitive; a clean request carries no action at all.
		if sensitive {
			d.Action = ActionMonitor
		}

	case settings.EnforcementWarn:
		if sensitive {
			d.Action = ActionWarn
			d.WarnOverride = true
		}

	case settings.EnforcementRedact:
		if sensitive {
			d.Action = ActionRedact
		}

	case settings.EnforcementBlock:
		if sensitive && r.RiskCategory == classify.RiskCritical {
			d.Action = ActionBlock
			d.Blocked = true
		}
		// Sensitive-but-not-critical under block mode is narrow by
		// design: the request still forwards with no recorded action.

	default:
		// Unreachable: settings.ResolveEnforcementMode always returns
		// one of the four canonical modes.
	}

	return d
}

// HasAction reports whether d carries a recorded enforcement_action, i.e.
// whether the request was sensitive enough for the active mode to act on
// it. Telemetry should omit the enforcement_action field entirely when
// this is false.
func (d Decision) HasAction() bool {
	return d.Action != ""
}

// ShouldForward reports whether the request should still be sent upstream
// given this Decision. A block-critical decision and a warn decision both
// withhold the request from upstream.
func (d Decision) ShouldForward() bool {
	return !d.Blocked && d.Action != ActionWarn
}
