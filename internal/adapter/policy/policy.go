package policy

import (
	"fmt"

	"github.com/guillermoBallester/querygate/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled configuration loaded from a YAML file.
// It can only add admission rules on top of the built-in ones.
type Policy struct {
	Gate GateConfig `yaml:"gate"`
}

// GateConfig lists extra rules for the admission gate.
type GateConfig struct {
	DestructiveVerbs  []string      `yaml:"destructive_verbs"`
	InjectionPatterns []PatternRule `yaml:"injection_patterns"`
}

// PatternRule is a named regular expression matched against lower-cased SQL.
type PatternRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// UnmarshalYAML accepts both the struct form and a bare pattern string.
//
//	injection_patterns:
//	  - '\bpg_sleep\s*\('              # bare: the pattern doubles as its name
//	  - name: union_all_select
//	    pattern: '\bunion\s+all\s+select\b'
func (r *PatternRule) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Name = value.Value
		r.Pattern = value.Value
		return nil
	}
	type alias PatternRule
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding injection pattern: %w", err)
	}
	*r = PatternRule(a)
	return nil
}

// GateOptions converts the policy into gate extensions. A nil policy yields none.
func (p *Policy) GateOptions() []domain.GateOption {
	if p == nil {
		return nil
	}
	patterns := make([]domain.InjectionPattern, 0, len(p.Gate.InjectionPatterns))
	for _, r := range p.Gate.InjectionPatterns {
		patterns = append(patterns, domain.InjectionPattern{Name: r.Name, Pattern: r.Pattern})
	}
	return []domain.GateOption{
		domain.WithDestructiveVerbs(p.Gate.DestructiveVerbs...),
		domain.WithInjectionPatterns(patterns...),
	}
}

// NewGate builds the admission gate for this policy.
func (p *Policy) NewGate() (*domain.Gate, error) {
	return domain.NewGate(p.GateOptions()...)
}
