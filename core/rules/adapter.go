package rules

// Compiler is the interface form of a compiler function. Implementers that
// prefer method values or stateful types over plain closures supply their
// registry as Compilers and let AdaptDomain expose it to the engine.
type Compiler[X any] interface {
	Apply(operand string) CompileResult[X]
}

// InterfaceDomain is a domain whose registry is expressed with Compiler
// values instead of CompilerFunc values.
type InterfaceDomain[X any] interface {
	CompilerPredicates() map[rune]Compiler[X]
}

// AdaptCompilers re-expresses an interface-based registry in the engine's
// native function type. Keys are preserved and every value forwards to the
// original compiler unchanged. Nothing is validated here: failures are
// already encoded in the right case of each CompileResult.
func AdaptCompilers[X any](compilers map[rune]Compiler[X]) DomainPredicates[X] {
	out := make(DomainPredicates[X], len(compilers))
	for op, c := range compilers {
		if c == nil {
			out[op] = nil
			continue
		}
		out[op] = c.Apply
	}
	return out
}

// AdaptDomain exposes an InterfaceDomain as a Domain. The source registry is
// read again on every call, so the adapted domain reflects whatever the source
// currently returns.
func AdaptDomain[X any](d InterfaceDomain[X]) Domain[X] {
	return adaptedDomain[X]{source: d}
}

type adaptedDomain[X any] struct {
	source InterfaceDomain[X]
}

func (a adaptedDomain[X]) DomainPredicates() DomainPredicates[X] {
	return AdaptCompilers(a.source.CompilerPredicates())
}

// NewInterfaceEngine builds an engine over an InterfaceDomain.
func NewInterfaceEngine[X any](d InterfaceDomain[X], opts ...Option) (*Engine[X], error) {
	return NewEngine(AdaptDomain(d), opts...)
}
