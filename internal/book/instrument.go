package book

import (
	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/matching"
)

// SettleFunc performs instrument-specific settlement for one match:
// contract creation, cash-for-goods transfer, or request recording.
// Returning a settlement sentinel skips just this match; returning an
// InvariantError aborts the matching pass.
type SettleFunc func(buy, sell *Order, volume, price float64) error

// ReleaseFunc disallocates whatever resource an order had reserved.
// Called once per still-open order at the cancellation phase.
type ReleaseFunc func(o *Order)

// bookEntry keys an order into a side tree by price with party
// identity as tiebreaker, so the matching algorithm always sees the
// same input order regardless of map iteration.
type bookEntry struct {
	Price float64
	Party string
	Order *Order
}

// bidLess orders the bid side best-first: price descending, then
// party ascending.
func bidLess(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Party < b.Party
}

// askLess orders the ask side best-first: price ascending, then
// party ascending.
func askLess(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Party < b.Party
}

// Config assembles an Instrument.
type Config struct {
	Key       string
	Algorithm matching.Algorithm

	// HistoryWindow bounds the trade history deque.
	HistoryWindow int

	// MergeResubmittedOrders selects the goods-market behavior where
	// a second same-side order from a party absorbs into the first.
	// When false a duplicate submission is an InvariantError.
	MergeResubmittedOrders bool

	// Epsilon is the volume below which a match is numerical noise
	// and skipped.
	Epsilon float64

	Settle  SettleFunc
	Release ReleaseFunc
	Log     *zap.Logger
}

// Instrument is the order book for one tradeable unit: one goods
// type, one labour-contract maturity, or one stock ticker. It owns at
// most one live bid and one live ask per party.
type Instrument struct {
	key  string
	algo matching.Algorithm

	bids map[string]*Order
	asks map[string]*Order

	bidTree *btree.BTreeG[bookEntry]
	askTree *btree.BTreeG[bookEntry]

	registeredSellers map[string]bool

	merge   bool
	epsilon float64
	settle  SettleFunc
	release ReleaseFunc

	history *History

	// sellerShare is the per-seller fraction of last cycle's traded
	// volume.
	sellerShare map[string]float64

	log *zap.Logger
}

// NewInstrument creates an instrument from cfg.
func NewInstrument(cfg Config) *Instrument {
	const degree = 32
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	epsilon := cfg.Epsilon
	if epsilon <= 0 {
		epsilon = 1e-10
	}
	window := cfg.HistoryWindow
	if window <= 0 {
		window = 50
	}
	return &Instrument{
		key:               cfg.Key,
		algo:              cfg.Algorithm,
		bids:              make(map[string]*Order),
		asks:              make(map[string]*Order),
		bidTree:           btree.NewG[bookEntry](degree, bidLess),
		askTree:           btree.NewG[bookEntry](degree, askLess),
		registeredSellers: make(map[string]bool),
		merge:             cfg.MergeResubmittedOrders,
		epsilon:           epsilon,
		settle:            cfg.Settle,
		release:           cfg.Release,
		history:           NewHistory(window),
		sellerShare:       make(map[string]float64),
		log:               log.With(zap.String("instrument", cfg.Key)),
	}
}

// Key returns the instrument key.
func (ins *Instrument) Key() string { return ins.key }

// RegisterSeller marks a party as a recognized seller on this
// instrument. Ask orders from unregistered sellers are rejected.
func (ins *Instrument) RegisterSeller(party string) {
	ins.registeredSellers[party] = true
}

// SellerRegistered reports whether party may submit ask orders.
func (ins *Instrument) SellerRegistered(party string) bool {
	return ins.registeredSellers[party]
}

// InsertOrder adds an order to the book. A party already holding a
// live order on the same side either merges into it (goods semantics,
// quantity adds and price resets) or gets an InvariantError (labour
// and loan semantics). Ask orders require a registered seller.
func (ins *Instrument) InsertOrder(o *Order) error {
	side, tree := ins.sideFor(o.Side)
	if o.Side == Sell && !ins.registeredSellers[o.Party] {
		return &domain.OrderError{Reason: "party " + o.Party + " is not a registered seller on " + ins.key}
	}
	if existing, ok := side[o.Party]; ok {
		if !ins.merge {
			return &domain.InvariantError{
				Message: "party " + o.Party + " already has a live " + o.Side.String() + " order on " + ins.key,
			}
		}
		// Re-key the tree entry: the merged order adopts the new price.
		tree.Delete(bookEntry{Price: existing.Price, Party: existing.Party})
		existing.AddQuantityAndUpdatePrice(o.Size(), o.Price)
		tree.ReplaceOrInsert(bookEntry{Price: existing.Price, Party: existing.Party, Order: existing})
		return nil
	}
	side[o.Party] = o
	tree.ReplaceOrInsert(bookEntry{Price: o.Price, Party: o.Party, Order: o})
	return nil
}

// ReviseOrder re-prices a live order and sets its open size, re-keying
// its book entry. Used by merge paths where the resource reservation
// is re-made at the new price. Revising an order the book does not
// track is dual-bookkeeping corruption.
func (ins *Instrument) ReviseOrder(o *Order, openSize, price float64) error {
	side, tree := ins.sideFor(o.Side)
	if tracked, ok := side[o.Party]; !ok || tracked != o {
		return &domain.InvariantError{
			Message: "revised " + o.Side.String() + " order for party " + o.Party + " is not the tracked one",
		}
	}
	tree.Delete(bookEntry{Price: o.Price, Party: o.Party})
	o.Revise(openSize, price)
	tree.ReplaceOrInsert(bookEntry{Price: o.Price, Party: o.Party, Order: o})
	return nil
}

// MatchOrders runs the configured matching algorithm over the current
// book and settles the resulting matches. Algorithm input failures
// mean zero trades this session; settlement sentinels skip their one
// match; only InvariantErrors propagate. The trade-weighted mean
// price and total volume of the session are appended to the history.
func (ins *Instrument) MatchOrders() (Record, error) {
	bids := ins.nodes(ins.bidTree)
	asks := ins.nodes(ins.askTree)

	matches, err := ins.algo.Match(bids, asks)
	if err != nil {
		ins.log.Warn("matching algorithm failed, no trades this session", zap.Error(err))
		return Record{}, nil
	}

	var priceVolume, volume float64
	tally := make(map[string]float64)

	for _, m := range matches {
		if m.Volume < ins.epsilon {
			continue
		}
		buy, ok := m.Bid.(*Order)
		if !ok {
			return Record{}, &domain.InvariantError{Message: "matching returned foreign bid reference"}
		}
		sell, ok := m.Ask.(*Order)
		if !ok {
			return Record{}, &domain.InvariantError{Message: "matching returned foreign ask reference"}
		}

		if ins.settle != nil {
			if err := ins.settle(buy, sell, m.Volume, m.Price); err != nil {
				if domain.IsFatal(err) {
					return Record{}, err
				}
				ins.log.Info("settlement skipped",
					zap.String("buyer", buy.Party),
					zap.String("seller", sell.Party),
					zap.Float64("volume", m.Volume),
					zap.Error(err))
				continue
			}
		}

		if err := buy.Execute(m.Volume); err != nil {
			return Record{}, err
		}
		if err := sell.Execute(m.Volume); err != nil {
			return Record{}, err
		}

		priceVolume += m.Price * m.Volume
		volume += m.Volume
		tally[sell.Party] += m.Volume

		if buy.Closed() {
			if err := ins.DiscontinueOrderTracking(buy); err != nil {
				return Record{}, err
			}
		}
		if sell.Closed() {
			if err := ins.DiscontinueOrderTracking(sell); err != nil {
				return Record{}, err
			}
		}
	}

	if volume <= 0 {
		return Record{}, nil
	}

	ins.sellerShare = make(map[string]float64, len(tally))
	for seller, v := range tally {
		ins.sellerShare[seller] = v / volume
	}

	rec := Record{Price: priceVolume / volume, Volume: volume}
	ins.history.Push(rec)
	return rec, nil
}

// CancelOrders force-cancels every still-open order, releasing its
// reservation first. Cancellation is unconditional; no order
// straddles cycles.
func (ins *Instrument) CancelOrders() {
	for _, tree := range []*btree.BTreeG[bookEntry]{ins.bidTree, ins.askTree} {
		tree.Ascend(func(e bookEntry) bool {
			if ins.release != nil {
				ins.release(e.Order)
			}
			return true
		})
		tree.Clear(false)
	}
	ins.bids = make(map[string]*Order)
	ins.asks = make(map[string]*Order)
}

// DiscontinueOrderTracking removes a specific order from its side
// map. Tracking a different order for that party is dual-bookkeeping
// corruption and reported as an InvariantError.
func (ins *Instrument) DiscontinueOrderTracking(o *Order) error {
	side, tree := ins.sideFor(o.Side)
	tracked, ok := side[o.Party]
	if !ok || tracked != o {
		return &domain.InvariantError{
			Message: "tracked " + o.Side.String() + " order for party " + o.Party + " differs from the one given",
		}
	}
	delete(side, o.Party)
	tree.Delete(bookEntry{Price: o.Price, Party: o.Party})
	return nil
}

// BidFor returns party's live bid order, if any.
func (ins *Instrument) BidFor(party string) (*Order, bool) {
	o, ok := ins.bids[party]
	return o, ok
}

// AskFor returns party's live ask order, if any.
func (ins *Instrument) AskFor(party string) (*Order, bool) {
	o, ok := ins.asks[party]
	return o, ok
}

// BidCount returns the number of live bid orders.
func (ins *Instrument) BidCount() int { return len(ins.bids) }

// AskCount returns the number of live ask orders.
func (ins *Instrument) AskCount() int { return len(ins.asks) }

// BidOrders returns the live bids best-first.
func (ins *Instrument) BidOrders() []*Order { return ordersOf(ins.bidTree) }

// AskOrders returns the live asks best-first.
func (ins *Instrument) AskOrders() []*Order { return ordersOf(ins.askTree) }

// History returns the instrument's bounded trade history.
func (ins *Instrument) History() *History { return ins.history }

// SellerMarketShare returns the fraction of last session's traded
// volume supplied by party.
func (ins *Instrument) SellerMarketShare(party string) float64 {
	return ins.sellerShare[party]
}

func (ins *Instrument) sideFor(s Side) (map[string]*Order, *btree.BTreeG[bookEntry]) {
	if s == Buy {
		return ins.bids, ins.bidTree
	}
	return ins.asks, ins.askTree
}

// nodes builds the matching algorithm's input list from a side tree,
// best price first.
func (ins *Instrument) nodes(tree *btree.BTreeG[bookEntry]) []matching.Node {
	out := make([]matching.Node, 0, tree.Len())
	tree.Ascend(func(e bookEntry) bool {
		if e.Order.OpenSize() > 0 {
			out = append(out, matching.Node{
				Price:    e.Order.Price,
				Quantity: e.Order.OpenSize(),
				Ref:      e.Order,
			})
		}
		return true
	})
	return out
}

func ordersOf(tree *btree.BTreeG[bookEntry]) []*Order {
	out := make([]*Order, 0, tree.Len())
	tree.Ascend(func(e bookEntry) bool {
		out = append(out, e.Order)
		return true
	})
	return out
}
