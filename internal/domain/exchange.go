package domain

import "sort"

// ExchangeKey identifies one desired pairwise exchange between a
// named consumer and a named supplier.
type ExchangeKey struct {
	ConsumerID string
	SupplierID string
}

// ResourceExchange carries the desired volume and rate of one
// pairwise exchange. For share distributions the volume is a signed
// cash amount: positive buys shares from the issuer's book, negative
// sells into it. For loans the volume is the desired principal and
// the rate the interest rate.
type ResourceExchange struct {
	Volume float64
	Rate   float64
}

// SortedExchangeKeys returns the request keys ordered by consumer
// then supplier identity. Distribution algorithms iterate requests in
// this order so that a run is reproducible regardless of map
// iteration order.
func SortedExchangeKeys(requests map[ExchangeKey]ResourceExchange) []ExchangeKey {
	keys := make([]ExchangeKey, 0, len(requests))
	for k := range requests {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ConsumerID != keys[j].ConsumerID {
			return keys[i].ConsumerID < keys[j].ConsumerID
		}
		return keys[i].SupplierID < keys[j].SupplierID
	})
	return keys
}

// SortedIDs returns the keys of a participant map in ascending order.
func SortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
