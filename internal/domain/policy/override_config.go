package policy

import (
	"os"

	"gopkg.in/yaml.v3"
)

// overrideRuleYAML is the on-disk shape of one admin-defined CEL override
// rule in the override rules file (config.Policy.OverrideRulesFile).
type overrideRuleYAML struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
	Action    string `yaml:"action"`
	Priority  int    `yaml:"priority"`
}

type overrideRulesFile struct {
	Rules []overrideRuleYAML `yaml:"rules"`
}

// LoadOverrideRulesFile reads and parses path into OverrideRules ready for
// NewOverrideSet. A missing file is not an error: it returns a nil slice,
// matching the CEL-overrides-disabled default.
func LoadOverrideRulesFile(path string) ([]OverrideRule, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var parsed overrideRulesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	rules := make([]OverrideRule, 0, len(parsed.Rules))
	for _, r := range parsed.Rules {
		rules = append(rules, OverrideRule{
			ID:        r.ID,
			Name:      r.Name,
			Condition: r.Condition,
			Action:    Action(r.Action),
			Priority:  r.Priority,
		})
	}
	return rules, nil
}
