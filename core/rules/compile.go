package rules

import (
	"fmt"

	"go.uber.org/multierr"
)

// CompileNode turns an expression tree into a predicate using the compilers
// in registry. Every term is compiled even after a failure, so the returned
// error lists all problems; use multierr.Errors to inspect them one by one.
func CompileNode[X any](node Node, registry DomainPredicates[X]) (Predicate[X], error) {
	if node == nil {
		return nil, ErrEmptyExpression
	}
	switch n := node.(type) {
	case *TermNode:
		return compileTerm(n, registry)
	case *NotNode:
		inner, err := CompileNode(n.Operand, registry)
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case *AndNode:
		children, err := compileChildren(n.Operands, registry)
		if err != nil {
			return nil, err
		}
		return And(children...), nil
	case *OrNode:
		children, err := compileChildren(n.Operands, registry)
		if err != nil {
			return nil, err
		}
		return Or(children...), nil
	default:
		return nil, fmt.Errorf("unsupported node type %T", node)
	}
}

func compileChildren[X any](nodes []Node, registry DomainPredicates[X]) ([]Predicate[X], error) {
	out := make([]Predicate[X], 0, len(nodes))
	var errs error
	for _, child := range nodes {
		p, err := CompileNode(child, registry)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, p)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func compileTerm[X any](term *TermNode, registry DomainPredicates[X]) (Predicate[X], error) {
	compiler, ok := registry[term.Operator]
	if !ok || compiler == nil {
		return nil, &UnknownOperatorError{Operator: term.Operator, Pos: term.Pos}
	}

	result := compiler(term.Operand)
	if reason, failed := result.Right(); failed {
		return nil, &CompileError{
			Operator: term.Operator,
			Operand:  term.Operand,
			Pos:      term.Pos,
			Reason:   reason,
		}
	}
	p, _ := result.Left()
	if p == nil {
		return nil, &CompileError{
			Operator: term.Operator,
			Operand:  term.Operand,
			Pos:      term.Pos,
			Reason:   "compiler returned no predicate",
		}
	}
	return p, nil
}
