// Package book implements per-instrument order books: at most one
// live order per party per side, deterministic B-tree ordering for
// the matching algorithm, and a bounded trade history.
package book

import "github.com/efreitasn/clearsim/internal/domain"

// Side indicates whether an order bids for or offers the instrument's
// unit.
type Side int

const (
	// Buy orders reserve cash.
	Buy Side = iota
	// Sell orders reserve the underlying inventory or labour.
	Sell
)

// String returns "buy" or "sell".
func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order records one party's trading intent on one instrument. The
// open size shrinks on every partial match; the order leaves the book
// on full fill or at the cycle's cancellation phase.
type Order struct {
	Party string
	Side  Side
	Price float64

	size     float64
	openSize float64
}

// NewOrder creates an order with the whole size open. Size must be
// positive and price non-negative; the market wrapper validates both
// before construction.
func NewOrder(party string, side Side, size, price float64) *Order {
	return &Order{
		Party:    party,
		Side:     side,
		Price:    price,
		size:     size,
		openSize: size,
	}
}

// Size returns the order's total size.
func (o *Order) Size() float64 { return o.size }

// OpenSize returns the unfilled size.
func (o *Order) OpenSize() float64 { return o.openSize }

// Closed reports whether the order has no open size left.
func (o *Order) Closed() bool { return o.openSize <= 0 }

// Execute reduces the open size by volume. Executing more than the
// open size is an InvariantError: it means the matching layer handed
// out volume the order never had.
func (o *Order) Execute(volume float64) error {
	if volume < 0 {
		return &domain.InvariantError{Message: "negative execution volume"}
	}
	if volume > o.openSize+1e-9 {
		return &domain.InvariantError{Message: "execution exceeds open size"}
	}
	o.openSize -= volume
	if o.openSize < 0 {
		o.openSize = 0
	}
	return nil
}

// AddQuantityAndUpdatePrice absorbs a re-submitted goods order into
// this one: the quantity adds and the price resets to the new order's
// price.
func (o *Order) AddQuantityAndUpdatePrice(quantity, price float64) {
	o.size += quantity
	o.openSize += quantity
	o.Price = price
}

// Revise sets the open size and price of a merged order. The total
// size moves by the same delta so executed volume stays reconciled.
func (o *Order) Revise(openSize, price float64) {
	o.size += openSize - o.openSize
	o.openSize = openSize
	o.Price = price
}
