package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNoData           = errors.New("no data")
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionClosed   = errors.New("position already closed")
	ErrLockHeld         = errors.New("lock already held")
	ErrContextDone      = errors.New("context cancelled")
)

// FetchFault is a per-venue fetch failure. It is recovered locally by the
// feed aggregator: the venue is excluded from the scan and the remaining
// venues' observations are still valid input.
type FetchFault struct {
	Venue string
	Err   error
}

func (f *FetchFault) Error() string {
	return fmt.Sprintf("fetch %s: %v", f.Venue, f.Err)
}

func (f *FetchFault) Unwrap() error { return f.Err }

// LegOutcome records what happened to one leg of a two-leg operation.
type LegOutcome struct {
	Exchange string
	Side     Side
	Order    Order
	Err      error
}

// LegImbalanceError reports that the two legs of an open or close did not
// complete symmetrically: one leg failed while the other filled, or the two
// fills diverged beyond the delta-neutrality tolerance. It is surfaced to the
// caller as-is and never auto-retried; the coordinator exposes UnwindLeg as
// the explicit recovery action but the unwind decision belongs to the caller.
type LegImbalanceError struct {
	// PositionID identifies the partially-filled position held for unwind.
	// Empty when neither leg filled and there is nothing to recover.
	PositionID string
	Symbol     string
	Long       LegOutcome
	Short      LegOutcome
	Reason     string
}

func (e *LegImbalanceError) Error() string {
	return fmt.Sprintf("leg imbalance on %s: %s", e.Symbol, e.Reason)
}
