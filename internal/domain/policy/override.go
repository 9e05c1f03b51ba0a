package policy

import (
	"sort"

	gocel "github.com/google/cel-go/cel"

	"github.com/complyze/ai-proxy/internal/adapter/outbound/cel"
	"github.com/complyze/ai-proxy/internal/domain/classify"
)

// OverrideRule is an admin-defined CEL override layered above the
// canonical enforcement_mode resolution (SPEC_FULL §3 supplemental). The
// first matching rule, ordered by Priority, wins; no match falls through
// to Evaluate unchanged.
type OverrideRule struct {
	ID        string
	Name      string
	Condition string
	Action    Action
	Priority  int

	compiled gocel.Program
}

// OverrideSet holds compiled OverrideRules ready for evaluation.
type OverrideSet struct {
	evaluator *cel.Evaluator
	rules     []OverrideRule
}

// NewOverrideSet compiles each rule's Condition against the override CEL
// environment. A rule with an invalid expression is dropped with its error
// returned in errs, keyed by rule ID; valid rules still load.
func NewOverrideSet(rules []OverrideRule) (*OverrideSet, map[string]error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return &OverrideSet{evaluator: evaluator}, map[string]error{"": err}
	}

	errs := make(map[string]error)
	compiled := make([]OverrideRule, 0, len(rules))
	for _, r := range rules {
		prg, cerr := evaluator.Compile(r.Condition)
		if cerr != nil {
			errs[r.ID] = cerr
			continue
		}
		r.compiled = prg
		compiled = append(compiled, r)
	}

	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority < compiled[j].Priority })

	return &OverrideSet{evaluator: evaluator, rules: compiled}, errs
}

// Resolve evaluates each rule in priority order against the classification
// result and destination facts, returning the first match's Action and
// true, or ("", false) if no rule matched.
func (s *OverrideSet) Resolve(r classify.Result, destDomain string, destIsAPIDomain bool) (Action, bool) {
	if s == nil || len(s.rules) == 0 {
		return "", false
	}

	categories := make(map[string]bool, len(r.CategoriesDetected))
	for _, c := range r.CategoriesDetected {
		categories[string(c)] = true
	}

	ec := cel.EvalContext{
		Categories:      categories,
		Score:           r.SensitivityScore,
		Risk:            string(r.RiskCategory),
		DestDomain:      destDomain,
		DestIsAPIDomain: destIsAPIDomain,
	}

	for _, rule := range s.rules {
		matched, err := s.evaluator.Evaluate(rule.compiled, ec)
		if err != nil || !matched {
			continue
		}
		return rule.Action, true
	}
	return "", false
}
