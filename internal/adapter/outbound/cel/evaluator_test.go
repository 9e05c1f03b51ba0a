package cel

import "testing"

func TestEvaluator_CategoryMatch(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	prg, err := e.Compile(`categories["pii"] && score > 50`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ec := EvalContext{
		Categories: map[string]bool{"pii": true},
		Score:      60,
		Risk:       "high",
	}
	got, err := e.Evaluate(prg, ec)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got {
		t.Error("expected expression to match")
	}
}

func TestEvaluator_DestDomain(t *testing.T) {
	e, _ := NewEvaluator()
	prg, err := e.Compile(`dest_is_api_domain && dest_domain == "api.openai.com"`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got, err := e.Evaluate(prg, EvalContext{DestDomain: "api.openai.com", DestIsAPIDomain: true})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got {
		t.Error("expected expression to match")
	}
}

func TestValidateExpression(t *testing.T) {
	e, _ := NewEvaluator()
	if err := e.ValidateExpression(""); err == nil {
		t.Error("expected error for empty expression")
	}
	if err := e.ValidateExpression(`risk == "critical"`); err != nil {
		t.Errorf("expected valid expression to pass, got %v", err)
	}
	if err := e.ValidateExpression(`not valid cel {{{`); err == nil {
		t.Error("expected error for invalid syntax")
	}
}

func TestValidateExpression_TooDeep(t *testing.T) {
	e, _ := NewEvaluator()
	expr := ""
	for i := 0; i < maxNestingDepth+5; i++ {
		expr += "("
	}
	expr += "true"
	for i := 0; i < maxNestingDepth+5; i++ {
		expr += ")"
	}
	if err := e.ValidateExpression(expr); err == nil {
		t.Error("expected error for excessive nesting")
	}
}
