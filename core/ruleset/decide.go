package ruleset

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-rulesengine/core/rules"
	"go.uber.org/multierr"
)

// Decision is the result of running a rule set against a subject.
type Decision struct {
	Outcome string `json:"outcome"`
	// Rule is the name of the deciding rule, empty for the default outcome.
	Rule    string `json:"rule,omitempty"`
	Matched bool   `json:"matched"`
}

type compiledRule[X any] struct {
	rule      Rule
	predicate rules.Predicate[X]
}

// Compiled is a rule set whose conditions have been compiled by an engine.
type Compiled[X any] struct {
	set   *RuleSet
	rules []compiledRule[X]
}

// Compile compiles every enabled rule of set with engine. Failures from all
// rules are collected and each is prefixed with the rule name.
func Compile[X any](engine *rules.Engine[X], set *RuleSet) (*Compiled[X], error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	compiled := &Compiled[X]{set: set}
	var errs error
	for _, rule := range set.Enabled() {
		p, err := engine.Compile(rule.When)
		if err != nil {
			for _, e := range multierr.Errors(err) {
				errs = multierr.Append(errs, fmt.Errorf("rule %q: %w", rule.Name, e))
			}
			continue
		}
		compiled.rules = append(compiled.rules, compiledRule[X]{rule: rule, predicate: p})
	}
	if errs != nil {
		return nil, errs
	}
	return compiled, nil
}

// Set returns the source rule set.
func (c *Compiled[X]) Set() *RuleSet {
	return c.set
}

// Decide returns the outcome of the first rule whose condition holds for
// subject, or the default outcome.
func (c *Compiled[X]) Decide(ctx context.Context, subject X) (Decision, error) {
	for _, r := range c.rules {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		if r.predicate(subject) {
			return Decision{Outcome: r.rule.Outcome, Rule: r.rule.Name, Matched: true}, nil
		}
	}
	return Decision{Outcome: c.set.Default}, nil
}

// Matches returns a decision for every rule whose condition holds, in rule
// order.
func (c *Compiled[X]) Matches(ctx context.Context, subject X) ([]Decision, error) {
	var out []Decision
	for _, r := range c.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.predicate(subject) {
			out = append(out, Decision{Outcome: r.rule.Outcome, Rule: r.rule.Name, Matched: true})
		}
	}
	return out, nil
}
