// Package matching defines the pure order-matching strategy contract
// used by instruments. An algorithm sees only price/quantity nodes
// with opaque references; it never touches balances or contracts.
package matching

import "sort"

// Node is one side's view of a single open order: a limit price, the
// quantity still available, and an opaque reference the caller uses
// to map matches back onto its own order records.
type Node struct {
	Price    float64
	Quantity float64
	Ref      any
}

// Match pairs one bid node with one ask node at a matched volume and
// price. The price always satisfies ask limit <= Price <= bid limit.
type Match struct {
	Bid    any
	Ask    any
	Volume float64
	Price  float64
}

// Matching is the ordered result of one algorithm invocation.
type Matching []Match

// Algorithm produces a Matching from the current bid and ask node
// lists. Implementations must be deterministic for a given input
// order; any randomness must come from the simulation's shared seeded
// stream. A malformed input raises an *InputError, which callers
// treat as zero trades for the session.
type Algorithm interface {
	Match(bids, asks []Node) (Matching, error)
}

// InputError reports malformed algorithm input (negative price or
// quantity). It is the typed failure the matching contract requires.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "matching input: " + e.Reason
}

// validate checks both node lists for negative prices or quantities.
func validate(bids, asks []Node) error {
	for _, n := range bids {
		if n.Price < 0 || n.Quantity < 0 {
			return &InputError{Reason: "negative price or quantity on bid side"}
		}
	}
	for _, n := range asks {
		if n.Price < 0 || n.Quantity < 0 {
			return &InputError{Reason: "negative price or quantity on ask side"}
		}
	}
	return nil
}

// sortBidsDescending returns a copy of bids ordered by price
// descending; ties keep the caller's order.
func sortBidsDescending(bids []Node) []Node {
	out := make([]Node, len(bids))
	copy(out, bids)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}

// sortAsksAscending returns a copy of asks ordered by price
// ascending; ties keep the caller's order.
func sortAsksAscending(asks []Node) []Node {
	out := make([]Node, len(asks))
	copy(out, asks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}
