// Package cel provides a CEL-based evaluator for admin-defined policy
// override rules, layered above the canonical enforcement-mode resolution
// (spec §9 design note, SPEC_FULL §3 supplemental: PolicyOverrideRule).
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// maxExpressionLength is the maximum allowed length for an override
// expression.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit, preventing cost-exhaustion
// from an admin-authored expression.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single CEL evaluation.
const evalTimeout = 1 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// EvalContext is the reduced variable set a PolicyOverrideRule's CEL
// expression is evaluated against: the classification result and
// destination facts for one request, nothing else.
type EvalContext struct {
	Categories       map[string]bool
	Score            int
	Risk             string
	DestDomain       string
	DestIsAPIDomain  bool
}

// Evaluator compiles and evaluates CEL expressions against an EvalContext.
type Evaluator struct {
	env *cel.Env
}

// NewEnvironment builds the CEL environment exposing exactly the variables
// an override rule needs: categories (a map so expressions write
// `categories["pii"]`), score, risk, dest_domain, dest_is_api_domain.
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("categories", cel.MapType(cel.StringType, cel.BoolType)),
		cel.Variable("score", cel.IntType),
		cel.Variable("risk", cel.StringType),
		cel.Variable("dest_domain", cel.StringType),
		cel.Variable("dest_is_api_domain", cel.BoolType),
	)
}

// NewEvaluator creates an Evaluator with the override environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create override environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks expr, returning a compiled, cost-bounded
// program. Nesting depth is not checked here; ValidateExpression checks it.
func (e *Evaluator) Compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// validateNesting checks that expr does not exceed the maximum allowed
// nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that expr is syntactically valid and safe:
// bounded length, bounded nesting, and it compiles against the override
// environment.
func (e *Evaluator) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if expr == "" {
		return errors.New("expression is empty")
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}
	return nil
}

// BuildActivation turns an EvalContext into the CEL activation map.
func BuildActivation(ec EvalContext) map[string]any {
	categories := ec.Categories
	if categories == nil {
		categories = map[string]bool{}
	}
	return map[string]any{
		"categories":         categories,
		"score":              int64(ec.Score),
		"risk":               ec.Risk,
		"dest_domain":        ec.DestDomain,
		"dest_is_api_domain": ec.DestIsAPIDomain,
	}
}

// Evaluate runs a compiled program against ec with a bounded timeout.
// Returns the boolean result of the expression.
func (e *Evaluator) Evaluate(prg cel.Program, ec EvalContext) (bool, error) {
	activation := BuildActivation(ec)

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}
