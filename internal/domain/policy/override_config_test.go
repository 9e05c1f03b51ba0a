package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverrideRulesFile_MissingFileReturnsNil(t *testing.T) {
	rules, err := LoadOverrideRulesFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules != nil {
		t.Errorf("expected nil rules for a missing file, got %v", rules)
	}
}

func TestLoadOverrideRulesFile_EmptyPathReturnsNil(t *testing.T) {
	rules, err := LoadOverrideRulesFile("")
	if err != nil || rules != nil {
		t.Errorf("expected (nil, nil) for an empty path, got (%v, %v)", rules, err)
	}
}

func TestLoadOverrideRulesFile_ParsesRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override-rules.yaml")
	yaml := `rules:
  - id: allow-internal-tool
    name: Allow internal tool domain
    condition: dest_domain == "tools.internal.example.com"
    action: monitor
    priority: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	rules, err := LoadOverrideRulesFile(path)
	if err != nil {
		t.Fatalf("LoadOverrideRulesFile() error = %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	r := rules[0]
	if r.ID != "allow-internal-tool" || r.Action != ActionMonitor || r.Priority != 5 {
		t.Errorf("unexpected rule: %+v", r)
	}
}

func TestLoadOverrideRulesFile_InvalidYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override-rules.yaml")
	if err := os.WriteFile(path, []byte("not: [valid yaml"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadOverrideRulesFile(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
