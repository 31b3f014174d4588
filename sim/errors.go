package sim

import "errors"

// Rejection errors. These are returned synchronously and never leave the
// ledger mutated; callers treat them as expected outcomes, not faults.
var (
	// ErrPositionExists guards the single-open-position invariant: a new
	// open for an occupied (account, symbol) is rejected, never merged.
	ErrPositionExists = errors.New("sim: open position already exists for symbol")

	// ErrPositionClosed is returned when closing a position that is no
	// longer open; the second close of a position is a no-op rejection.
	ErrPositionClosed = errors.New("sim: position already closed")

	ErrInsufficientMargin = errors.New("sim: required margin exceeds available balance")
	ErrLeverageBound      = errors.New("sim: leverage out of bounds")
	ErrNoPrice            = errors.New("sim: no reference price")
	ErrBadSize            = errors.New("sim: size must be positive")
	ErrBadStop            = errors.New("sim: stop may only tighten")
)
