// Package distribution implements the resource-distribution
// strategies that turn desired pairwise exchanges into real
// contracts and cash/share movements. Each variant has a distinct
// settlement policy but the same conservation obligations: no cash or
// share is created or destroyed by a pure transfer, and the contracts
// created by one call sum to the aggregate volume the call reports.
package distribution

import (
	"github.com/efreitasn/clearsim/internal/domain"
)

// epsilon is the volume below which an individual exchange is
// numerical noise and skipped.
const epsilon = 1e-10

// Algorithm distributes resources between named consumers and
// suppliers according to the desired exchanges in requests. It
// returns the aggregate realized volume and the volume-weighted
// effective rate. Each requests map is consumed exactly once.
//
// Settlement failures of a single exchange (insufficient funds,
// double employment) skip that exchange only; InvariantErrors abort
// the call.
type Algorithm interface {
	DistributeResources(
		consumers map[string]domain.CashHolder,
		suppliers map[string]domain.CashHolder,
		requests map[domain.ExchangeKey]domain.ResourceExchange,
	) (volume, rate float64, err error)
}

// pairKey identifies a borrower/lender pair for running-contract
// aggregation.
type pairKey struct {
	borrowerID string
	lenderID   string
}

// asLender asserts that a supplier carries the Lender capability.
func asLender(h domain.CashHolder) (domain.Lender, error) {
	l, ok := h.(domain.Lender)
	if !ok {
		return nil, &domain.InvariantError{Message: "supplier " + h.ID() + " is not a lender"}
	}
	return l, nil
}

// asStockHolder asserts that a consumer carries the StockHolder
// capability.
func asStockHolder(h domain.CashHolder) (domain.StockHolder, error) {
	s, ok := h.(domain.StockHolder)
	if !ok {
		return nil, &domain.InvariantError{Message: "consumer " + h.ID() + " is not a stockholder"}
	}
	return s, nil
}

// soleSupplier returns the single supplier of a share distribution
// call, or an InvariantError when the supplier map does not hold
// exactly one entry.
func soleSupplier(suppliers map[string]domain.CashHolder) (domain.CashHolder, error) {
	if len(suppliers) != 1 {
		return nil, &domain.InvariantError{Message: "share distribution requires exactly one supplier"}
	}
	for _, s := range suppliers {
		return s, nil
	}
	return nil, nil
}
