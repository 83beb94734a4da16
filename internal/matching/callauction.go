package matching

// CallAuction clears the book at a single uniform price with
// proportional rationing. The crossing price is the midpoint of the
// marginal bid/ask limits; every order whose limit is compatible with
// that price participates, and the longer side is scaled down by one
// scalar factor so aggregate executed demand equals aggregate
// executed supply.
type CallAuction struct{}

// NewCallAuction creates the uniform-price auction algorithm.
func NewCallAuction() *CallAuction {
	return &CallAuction{}
}

// Match implements Algorithm.
func (c *CallAuction) Match(bids, asks []Node) (Matching, error) {
	if err := validate(bids, asks); err != nil {
		return nil, err
	}
	if len(bids) == 0 || len(asks) == 0 {
		return nil, nil
	}

	sb := sortBidsDescending(bids)
	sa := sortAsksAscending(asks)
	if sb[0].Price < sa[0].Price {
		return nil, nil
	}

	// Greedy walk to find the marginal (last compatible) pair.
	marginalBid, marginalAsk := sb[0].Price, sa[0].Price
	i, j := 0, 0
	bidOpen, askOpen := sb[0].Quantity, sa[0].Quantity
	for i < len(sb) && j < len(sa) && sb[i].Price >= sa[j].Price {
		marginalBid, marginalAsk = sb[i].Price, sa[j].Price
		v := bidOpen
		if askOpen < v {
			v = askOpen
		}
		bidOpen -= v
		askOpen -= v
		if bidOpen <= 0 {
			i++
			if i < len(sb) {
				bidOpen = sb[i].Quantity
			}
		}
		if askOpen <= 0 {
			j++
			if j < len(sa) {
				askOpen = sa[j].Quantity
			}
		}
	}
	clearing := (marginalBid + marginalAsk) / 2

	// Price-eligible orders and the rationing factors.
	var eligBids, eligAsks []Node
	var demand, supply float64
	for _, n := range sb {
		if n.Price >= clearing {
			eligBids = append(eligBids, n)
			demand += n.Quantity
		}
	}
	for _, n := range sa {
		if n.Price <= clearing {
			eligAsks = append(eligAsks, n)
			supply += n.Quantity
		}
	}
	volume := demand
	if supply < volume {
		volume = supply
	}
	if volume <= 0 {
		return nil, nil
	}
	bidFactor := volume / demand
	askFactor := volume / supply

	// Pair the rationed fills, walking both eligible lists in order.
	var out Matching
	bi, ai := 0, 0
	bidFill := eligBids[0].Quantity * bidFactor
	askFill := eligAsks[0].Quantity * askFactor
	for bi < len(eligBids) && ai < len(eligAsks) {
		v := bidFill
		if askFill < v {
			v = askFill
		}
		if v > 0 {
			out = append(out, Match{
				Bid:    eligBids[bi].Ref,
				Ask:    eligAsks[ai].Ref,
				Volume: v,
				Price:  clearing,
			})
		}
		bidFill -= v
		askFill -= v
		if bidFill <= 1e-12 {
			bi++
			if bi < len(eligBids) {
				bidFill = eligBids[bi].Quantity * bidFactor
			}
		}
		if askFill <= 1e-12 {
			ai++
			if ai < len(eligAsks) {
				askFill = eligAsks[ai].Quantity * askFactor
			}
		}
	}
	return out, nil
}
