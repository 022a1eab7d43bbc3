// Package either provides a generic two-case value. By convention the left
// case carries a successful result and the right case carries a failure
// description.
package either

import "fmt"

// Either holds exactly one of a left value or a right value. The zero value
// is a left holding the zero L.
type Either[L, R any] struct {
	left    L
	right   R
	isRight bool
}

// Left creates an Either holding v in the left case.
func Left[L, R any](v L) Either[L, R] {
	return Either[L, R]{left: v}
}

// Right creates an Either holding v in the right case.
func Right[L, R any](v R) Either[L, R] {
	return Either[L, R]{right: v, isRight: true}
}

// IsLeft reports whether e holds a left value.
func (e Either[L, R]) IsLeft() bool {
	return !e.isRight
}

// IsRight reports whether e holds a right value.
func (e Either[L, R]) IsRight() bool {
	return e.isRight
}

// Left returns the left value and true, or the zero L and false.
func (e Either[L, R]) Left() (L, bool) {
	if e.isRight {
		var zero L
		return zero, false
	}
	return e.left, true
}

// Right returns the right value and true, or the zero R and false.
func (e Either[L, R]) Right() (R, bool) {
	if !e.isRight {
		var zero R
		return zero, false
	}
	return e.right, true
}

func (e Either[L, R]) String() string {
	if e.isRight {
		return fmt.Sprintf("Right(%v)", e.right)
	}
	return fmt.Sprintf("Left(%v)", e.left)
}

// Fold collapses e into a single value by applying onLeft or onRight.
func Fold[L, R, T any](e Either[L, R], onLeft func(L) T, onRight func(R) T) T {
	if e.isRight {
		return onRight(e.right)
	}
	return onLeft(e.left)
}

// MapLeft transforms the left value, leaving a right value untouched.
func MapLeft[L, R, T any](e Either[L, R], fn func(L) T) Either[T, R] {
	if e.isRight {
		return Right[T, R](e.right)
	}
	return Left[T, R](fn(e.left))
}

// MapRight transforms the right value, leaving a left value untouched.
func MapRight[L, R, T any](e Either[L, R], fn func(R) T) Either[L, T] {
	if e.isRight {
		return Right[L, T](fn(e.right))
	}
	return Left[L, T](e.left)
}
