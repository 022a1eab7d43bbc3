// Package ruleset loads ordered rule lists from YAML and turns them into
// decisions. The first enabled rule whose condition holds decides the outcome;
// when none holds, the set's default outcome applies.
package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

// ErrInvalidRuleSet wraps every validation failure.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// Rule pairs a condition with the outcome it produces.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	When        string `yaml:"when" json:"when"`
	Outcome     string `yaml:"outcome" json:"outcome"`
	Disabled    bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// RuleSet is an ordered list of rules with a fallback outcome.
type RuleSet struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Default     string `yaml:"default" json:"default"`
	Rules       []Rule `yaml:"rules" json:"rules"`
}

// Parse decodes and validates a YAML rule set. Unknown fields are rejected.
func Parse(data []byte) (*RuleSet, error) {
	var set RuleSet
	if err := yaml.UnmarshalStrict(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode rule set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// Load reads a rule set from r.
func Load(r io.Reader) (*RuleSet, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	return Parse(buf.Bytes())
}

// LoadFile reads a rule set from the file at path.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set %s: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Marshal encodes the set as YAML.
func (s *RuleSet) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks structural requirements: a set name, and for every rule a
// unique non-empty name, a condition and an outcome. All problems are
// reported together.
func (s *RuleSet) Validate() error {
	var errs error
	if s.Name == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: missing name", ErrInvalidRuleSet))
	}
	seen := make(map[string]struct{}, len(s.Rules))
	for i, rule := range s.Rules {
		if rule.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: rule %d has no name", ErrInvalidRuleSet, i))
		} else if _, dup := seen[rule.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%w: duplicate rule name %q", ErrInvalidRuleSet, rule.Name))
		} else {
			seen[rule.Name] = struct{}{}
		}
		if rule.When == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: rule %q has no condition", ErrInvalidRuleSet, rule.Name))
		}
		if rule.Outcome == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: rule %q has no outcome", ErrInvalidRuleSet, rule.Name))
		}
	}
	return errs
}

// Enabled returns the rules that are not disabled, in order.
func (s *RuleSet) Enabled() []Rule {
	out := make([]Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		if !r.Disabled {
			out = append(out, r)
		}
	}
	return out
}
