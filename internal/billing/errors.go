package billing

import (
	"errors"
	"fmt"
)

// Billing diagnostics. None of them abort a billing run; they travel alongside a usable amount.
var (
	// ErrInvalidFormula marks a malformed or rejected billing formula.
	ErrInvalidFormula = errors.New("billing: invalid formula")
	// ErrInvalidConfiguration marks a project whose billing fields cannot price the work.
	ErrInvalidConfiguration = errors.New("billing: invalid configuration")
	// ErrArithmeticDegenerate marks a zero divisor in the divisor/multiplier variant.
	ErrArithmeticDegenerate = errors.New("billing: degenerate arithmetic")
	// ErrInvalidPeriod marks a period whose start is after its end.
	ErrInvalidPeriod = errors.New("billing: invalid period")
)

// FormulaError describes why a formula was rejected. It matches ErrInvalidFormula with errors.Is.
type FormulaError struct {
	Pos int    // Byte offset into the formula, or -1 when not tied to a position.
	Msg string // Human-readable reason.
}

// Error implements error.
func (e *FormulaError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("billing: invalid formula: %s", e.Msg)
	}
	return fmt.Sprintf("billing: invalid formula: %s at position %d", e.Msg, e.Pos)
}

// Unwrap lets errors.Is match ErrInvalidFormula.
func (e *FormulaError) Unwrap() error {
	return ErrInvalidFormula
}

func formulaErrorf(pos int, format string, args ...any) *FormulaError {
	return &FormulaError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
