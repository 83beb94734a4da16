package matching

import "math/rand"

// Forager matches bidders to random compatible askers, in the manner
// of consumers foraging across sellers. Each bidder, visited in a
// random order, repeatedly picks a uniformly random ask it can afford
// and trades at that ask's limit price until the bid is filled or no
// compatible ask remains.
//
// All randomness is drawn from the shared seeded stream handed in at
// construction, so a run is reproducible for a given seed and input
// order.
type Forager struct {
	rng *rand.Rand
}

// NewForager creates a forager algorithm drawing from rng. A nil rng
// is an error at match time.
func NewForager(rng *rand.Rand) *Forager {
	return &Forager{rng: rng}
}

// Match implements Algorithm.
func (f *Forager) Match(bids, asks []Node) (Matching, error) {
	if f.rng == nil {
		return nil, &InputError{Reason: "no random stream configured"}
	}
	if err := validate(bids, asks); err != nil {
		return nil, err
	}
	if len(bids) == 0 || len(asks) == 0 {
		return nil, nil
	}

	open := make([]Node, len(asks))
	copy(open, asks)

	var out Matching
	for _, bi := range f.rng.Perm(len(bids)) {
		bid := bids[bi]
		remaining := bid.Quantity
		for remaining > 1e-12 {
			// Collect asks this bid can still afford.
			var candidates []int
			for ai := range open {
				if open[ai].Quantity > 1e-12 && open[ai].Price <= bid.Price {
					candidates = append(candidates, ai)
				}
			}
			if len(candidates) == 0 {
				break
			}
			ai := candidates[f.rng.Intn(len(candidates))]
			v := remaining
			if open[ai].Quantity < v {
				v = open[ai].Quantity
			}
			out = append(out, Match{
				Bid:    bid.Ref,
				Ask:    open[ai].Ref,
				Volume: v,
				Price:  open[ai].Price,
			})
			open[ai].Quantity -= v
			remaining -= v
		}
	}
	return out, nil
}
