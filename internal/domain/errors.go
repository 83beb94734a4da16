package domain

import "errors"

// Sentinel errors for expected settlement-time failures. A failed
// credit or contract start skips the one trade it belongs to; the
// rest of the matching or distribution call proceeds.
var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrDoubleEmployment  = errors.New("double_employment")
	ErrUnknownTicker     = errors.New("unknown_ticker")
	ErrUnknownParty      = errors.New("unknown_party")
)

// OrderError reports a rejected order submission: invalid price or
// size, or a party lacking the capability the order requires. No
// state is mutated before an OrderError is returned.
type OrderError struct {
	Reason string
}

func (e *OrderError) Error() string {
	return "order rejected: " + e.Reason
}

// AllocationError reports that a resource reservation could not be
// made for an order. Any partial allocation has been rolled back by
// the time the error is returned.
type AllocationError struct {
	Resource  string
	Requested float64
	Allocated float64
}

func (e *AllocationError) Error() string {
	return "allocation failed: " + e.Resource
}

// InvariantError signals a programmer defect: a duplicate live order,
// a conservation mismatch, or dual-bookkeeping corruption. It aborts
// the current cycle's processing of the offending component instead
// of being swallowed.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Message
}

// IsFatal reports whether err carries an InvariantError anywhere in
// its chain. Fatal errors propagate; everything else is logged and
// absorbed at the enclosing match or distribution call.
func IsFatal(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
