package domain

import "errors"

// Kind tags a core error with the category spec.md §7 defines. Validation
// kinds abort before any state mutation; NumericalInstability never
// aborts a run, it only annotates a diagnostic the tracker already
// recovered from.
type Kind string

const (
	KindInvalidRange        Kind = "invalid_range"
	KindEmptyPool           Kind = "empty_pool"
	KindInvalidMutation     Kind = "invalid_mutation"
	KindConstraintViolation Kind = "constraint_violation"
	KindNumericalInstability Kind = "numerical_instability"
)

// Sentinel errors, one per Kind that is returned as an error, checkable
// with errors.Is. ConstraintViolation and NumericalInstability have no
// sentinel: they surface as constraint.ConstraintViolation warnings and
// fairness.Diagnostic values instead. Wrap these with
// fmt.Errorf("...: %w", ErrX) to add call-specific context without losing
// the ability to test for the category.
var (
	ErrInvalidRange    = errors.New("invalid range")
	ErrEmptyPool       = errors.New("no person active in the requested range")
	ErrInvalidMutation = errors.New("invalid mutation")
)

// KindOf maps a sentinel (or any error wrapping one) to its Kind. Returns
// "" if err does not wrap a recognized sentinel.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidRange):
		return KindInvalidRange
	case errors.Is(err, ErrEmptyPool):
		return KindEmptyPool
	case errors.Is(err, ErrInvalidMutation):
		return KindInvalidMutation
	default:
		return ""
	}
}
