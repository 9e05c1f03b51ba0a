package policy

import (
	"testing"

	"github.com/complyze/ai-proxy/internal/domain/classify"
)

func TestOverrideSet_FirstMatchWins(t *testing.T) {
	rules := []OverrideRule{
		{ID: "low-prio", Name: "catch-all", Condition: "true", Action: ActionMonitor, Priority: 100},
		{ID: "high-prio", Name: "phi-always-block", Condition: `categories["phi"]`, Action: ActionBlock, Priority: 1},
	}
	set, errs := NewOverrideSet(rules)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	r := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryPHI}}
	action, matched := set.Resolve(r, "api.openai.com", true)
	if !matched || action != ActionBlock {
		t.Errorf("expected high-priority phi rule to win, got action=%v matched=%v", action, matched)
	}
}

func TestOverrideSet_NoMatchFallsThrough(t *testing.T) {
	rules := []OverrideRule{
		{ID: "r1", Condition: `categories["phi"]`, Action: ActionBlock, Priority: 1},
	}
	set, _ := NewOverrideSet(rules)
	r := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryNone}}
	_, matched := set.Resolve(r, "api.openai.com", true)
	if matched {
		t.Error("expected no match when no rule's condition is true")
	}
}

func TestOverrideSet_InvalidRuleIsDroppedNotFatal(t *testing.T) {
	rules := []OverrideRule{
		{ID: "bad", Condition: "not valid cel {{{", Action: ActionBlock, Priority: 1},
		{ID: "good", Condition: "true", Action: ActionWarn, Priority: 2},
	}
	set, errs := NewOverrideSet(rules)
	if _, ok := errs["bad"]; !ok {
		t.Error("expected an error recorded for the invalid rule")
	}
	r := classify.Result{CategoriesDetected: []classify.Category{classify.CategoryNone}}
	action, matched := set.Resolve(r, "", false)
	if !matched || action != ActionWarn {
		t.Errorf("expected the remaining valid rule to still evaluate, got action=%v matched=%v", action, matched)
	}
}
