// Package market implements the order-submission wrappers around
// instruments: capability validation, resource allocation, and the
// per-cycle match and cancellation scheduling for goods, labour,
// loans and shares.
package market

import "github.com/efreitasn/clearsim/internal/domain"

// Market is the unit the clearing house processes once per cycle, in
// registration order.
type Market interface {
	Name() string

	// Process runs the market's matching (and, for loans and shares,
	// resource distribution) for the current cycle. Only
	// InvariantErrors come back; expected failures are absorbed and
	// logged inside.
	Process() error

	// CancelAllOrders force-cancels every still-open order, releasing
	// its reservation. Called once per cycle after Process.
	CancelAllOrders()
}

// asCashHolders widens a typed participant map for a distribution
// call.
func asCashHolders[T domain.CashHolder](m map[string]T) map[string]domain.CashHolder {
	out := make(map[string]domain.CashHolder, len(m))
	for id, h := range m {
		out[id] = h
	}
	return out
}
