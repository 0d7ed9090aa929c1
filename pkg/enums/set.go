package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the closed list of values a string enum accepts, in declaration order.
type set[T ~string] struct {
	kind   string
	values []T
	// fold upper-cases and trims input before matching.
	fold bool
}

func newSet[T ~string](kind string, values ...T) set[T] {
	return set[T]{kind: kind, values: values}
}

func (s set[T]) folded() set[T] {
	s.fold = true
	return s
}

func (s set[T]) has(v T) bool { return slices.Contains(s.values, v) }

func (s set[T]) parse(raw string) (T, error) {
	v := T(raw)
	if s.fold {
		v = T(strings.ToUpper(strings.TrimSpace(raw)))
	}
	if !s.has(v) {
		var zero T
		return zero, fmt.Errorf("invalid %s %q", s.kind, raw)
	}
	return v, nil
}
