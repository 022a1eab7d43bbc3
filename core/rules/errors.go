package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyExpression is returned when a rule contains no terms.
	ErrEmptyExpression = errors.New("empty rule expression")
	// ErrReservedOperator is returned when registering a compiler under a
	// character the grammar already uses.
	ErrReservedOperator = errors.New("operator character is reserved")
	// ErrNilCompiler is returned when registering a nil compiler.
	ErrNilCompiler = errors.New("compiler cannot be nil")
)

// SyntaxError describes malformed rule text. Pos is a byte offset into the
// rule.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

func syntaxErrorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// UnknownOperatorError is returned when a term uses an operator that has no
// compiler registered.
type UnknownOperatorError struct {
	Operator rune
	Pos      int
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q at %d", e.Operator, e.Pos)
}

// CompileError is returned when a domain compiler rejects an operand. Reason
// is the compiler's message, unaltered.
type CompileError struct {
	Operator rune
	Operand  string
	Pos      int
	Reason   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("cannot compile %c%s at %d: %s", e.Operator, quoteOperand(e.Operand), e.Pos, e.Reason)
}
