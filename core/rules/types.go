// Package rules implements a character-keyed predicate-expression engine.
// A rule is a boolean expression whose terms are a single operator character
// followed by an operand, for example `>age:17 & !@banned`. Each operator is
// bound to a compiler function supplied by a domain; the engine parses the
// rule, compiles every term through the domain, and combines the resulting
// predicates.
package rules

import (
	"fmt"
	"sort"

	"github.com/asaidimu/go-rulesengine/core/either"
)

// Predicate is a compiled test over an evaluation context.
type Predicate[X any] func(subject X) bool

// CompileResult is what a compiler produces for an operand: a predicate in the
// left case, or a description of why the operand could not be compiled in the
// right case.
type CompileResult[X any] = either.Either[Predicate[X], string]

// CompilerFunc is the engine's native compiler type. It turns a raw operand
// string into a CompileResult.
type CompilerFunc[X any] func(operand string) CompileResult[X]

// Apply calls f. It lets a CompilerFunc be used wherever a Compiler is
// expected.
func (f CompilerFunc[X]) Apply(operand string) CompileResult[X] {
	return f(operand)
}

// DomainPredicates maps operator characters to their compilers.
type DomainPredicates[X any] map[rune]CompilerFunc[X]

// Keys returns the registered operator characters in ascending order.
func (d DomainPredicates[X]) Keys() []rune {
	keys := make([]rune, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone returns a shallow copy of d.
func (d DomainPredicates[X]) Clone() DomainPredicates[X] {
	out := make(DomainPredicates[X], len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Domain supplies the operator registry an engine works with.
type Domain[X any] interface {
	DomainPredicates() DomainPredicates[X]
}

// DomainFunc lets an ordinary function act as a Domain.
type DomainFunc[X any] func() DomainPredicates[X]

// DomainPredicates calls f.
func (f DomainFunc[X]) DomainPredicates() DomainPredicates[X] {
	return f()
}

// StaticDomain returns a Domain that always yields a copy of registry.
func StaticDomain[X any](registry DomainPredicates[X]) Domain[X] {
	return DomainFunc[X](func() DomainPredicates[X] {
		return registry.Clone()
	})
}

// Compiled wraps p as a successful CompileResult.
func Compiled[X any](p Predicate[X]) CompileResult[X] {
	return either.Left[Predicate[X], string](p)
}

// Failed builds a failed CompileResult with a formatted reason.
func Failed[X any](format string, args ...any) CompileResult[X] {
	return either.Right[Predicate[X], string](fmt.Sprintf(format, args...))
}
