package rules

// And returns a predicate that holds when every predicate holds. Evaluation
// stops at the first failure. And() with no arguments always holds.
func And[X any](predicates ...Predicate[X]) Predicate[X] {
	return func(subject X) bool {
		for _, p := range predicates {
			if !p(subject) {
				return false
			}
		}
		return true
	}
}

// Or returns a predicate that holds when any predicate holds. Evaluation stops
// at the first success. Or() with no arguments never holds.
func Or[X any](predicates ...Predicate[X]) Predicate[X] {
	return func(subject X) bool {
		for _, p := range predicates {
			if p(subject) {
				return true
			}
		}
		return false
	}
}

// Not negates p.
func Not[X any](p Predicate[X]) Predicate[X] {
	return func(subject X) bool {
		return !p(subject)
	}
}

// Always is a predicate that holds for every subject.
func Always[X any]() Predicate[X] {
	return func(X) bool { return true }
}

// Never is a predicate that holds for no subject.
func Never[X any]() Predicate[X] {
	return func(X) bool { return false }
}
