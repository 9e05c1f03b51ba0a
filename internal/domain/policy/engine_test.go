package policy

import (
	"testing"

	"github.com/complyze/ai-proxy/internal/domain/classify"
	"github.com/complyze/ai-proxy/internal/domain/destination"
	"github.com/complyze/ai-proxy/internal/domain/settings"
)

func TestEvaluate_MonitorOnlySetsActionWhenSensitive(t *testing.T) {
	clean := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryNone}}
	s := settings.Settings{EnforcementMode: settings.EnforcementMonitor}

	d := Evaluate(clean, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.HasAction() {
		t.Errorf("clean request under monitor should have no action, got %v", d.Action)
	}

	sensitive := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryPII}, SensitivityScore: 40, RiskCategory: classify.RiskModerate}
	d = Evaluate(sensitive, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.Action != ActionMonitor {
		t.Errorf("sensitive request under monitor should set action=monitor, got %v", d.Action)
	}
	if d.Blocked {
		t.Error("monitor mode should never set blocked")
	}
}

func TestEvaluate_BlockOnlyBlocksCritical(t *testing.T) {
	s := settings.Settings{EnforcementMode: settings.EnforcementBlock}

	critical := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryPHI}, SensitivityScore: 80, RiskCategory: classify.RiskCritical}
	d := Evaluate(critical, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.Action != ActionBlock || !d.Blocked {
		t.Errorf("critical sensitive request under block should block, got %+v", d)
	}

	moderate := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryPII}, SensitivityScore: 30, RiskCategory: classify.RiskModerate}
	d = Evaluate(moderate, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.Blocked {
		t.Error("non-critical sensitive request should not block (block is narrow by design)")
	}
	if !d.ShouldForward() {
		t.Error("non-critical request should still forward")
	}
}

func TestEvaluate_WarnSetsOverrideOnlyWhenSensitive(t *testing.T) {
	s := settings.Settings{EnforcementMode: settings.EnforcementWarn}
	sensitive := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryFinancial}, SensitivityScore: 40}
	d := Evaluate(sensitive, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.Action != ActionWarn || !d.WarnOverride {
		t.Errorf("sensitive request under warn should set action=warn, got %+v", d)
	}
	clean := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryNone}}
	d = Evaluate(clean, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.HasAction() || d.WarnOverride {
		t.Errorf("clean request under warn should have no action, got %+v", d)
	}
}

func TestEvaluate_RedactOnlyWhenSensitive(t *testing.T) {
	s := settings.Settings{EnforcementMode: settings.EnforcementRedact}
	clean := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryNone}}
	d := Evaluate(clean, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.HasAction() {
		t.Error("clean request under redact should have no action")
	}
}

func TestEvaluate_LegacyBooleanFallback(t *testing.T) {
	s := settings.Settings{BlockHighRisk: true}
	critical := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryPHI}, SensitivityScore: 90, RiskCategory: classify.RiskCritical}
	d := Evaluate(critical, ExposureTextOnly, destination.MultiplierPublicAI, s)
	if d.Action != ActionBlock {
		t.Errorf("block_high_risk=true with no canonical mode should resolve to block, got %v", d.EnforcementMode)
	}
}

func TestComputeREU(t *testing.T) {
	r := classify.Result{SensitivityScore: 50}
	got := ComputeREU(r, ExposureAttachment, destination.MultiplierUnknown)
	want := 50.0 * 5.0 * 3.0
	if got != want {
		t.Errorf("ComputeREU() = %v, want %v", got, want)
	}
}
