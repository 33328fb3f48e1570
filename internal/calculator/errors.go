package calculator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientData matches *InsufficientDataError via errors.Is.
	ErrInsufficientData = errors.New("insufficient price data")
	// ErrInvalidConstraint matches *InvalidConstraintError via errors.Is.
	ErrInvalidConstraint = errors.New("invalid constraint")
)

// InsufficientDataError is returned when no candidate store has a price for
// any item on the list. Callers must show a "no data" state rather than a
// zero total.
type InsufficientDataError struct {
	// ProductIDs are the compared items, none of which could be priced.
	ProductIDs []string
}

func (e *InsufficientDataError) Error() string {
	if len(e.ProductIDs) == 0 {
		return "insufficient price data: empty list"
	}
	return fmt.Sprintf("insufficient price data: no store has a price for any of [%s]",
		strings.Join(e.ProductIDs, ", "))
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// InvalidConstraintError names the request field that cannot be satisfied.
type InvalidConstraintError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidConstraintError) Error() string {
	return fmt.Sprintf("invalid constraint %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidConstraintError) Is(target error) bool { return target == ErrInvalidConstraint }
