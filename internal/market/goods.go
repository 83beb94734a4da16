package market

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/book"
	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/matching"
)

// GoodsMarket owns one instrument per goods type. Re-submitted orders
// merge: the existing order absorbs the new quantity and adopts the
// new price. Sell orders reserve inventory, buy orders reserve cash
// at price times quantity; both shrink to whatever was actually
// allocated.
type GoodsMarket struct {
	name string
	algo matching.Algorithm

	buyers  map[string]domain.GoodsBuyer
	sellers map[string]domain.GoodsSeller

	instruments map[string]*book.Instrument
	keys        []string // instrument creation order

	historyWindow int
	epsilon       float64
	trades        []*domain.GoodsTrade
	log           *zap.Logger
}

// NewGoodsMarket creates a goods market matching with algo.
func NewGoodsMarket(name string, algo matching.Algorithm, historyWindow int, epsilon float64, log *zap.Logger) *GoodsMarket {
	if log == nil {
		log = zap.NewNop()
	}
	return &GoodsMarket{
		name:          name,
		algo:          algo,
		buyers:        make(map[string]domain.GoodsBuyer),
		sellers:       make(map[string]domain.GoodsSeller),
		instruments:   make(map[string]*book.Instrument),
		historyWindow: historyWindow,
		epsilon:       epsilon,
		log:           log.Named("goods").With(zap.String("market", name)),
	}
}

// Name implements Market.
func (m *GoodsMarket) Name() string { return m.name }

// RegisterBuyer grants b the goods-buyer capability on this market.
func (m *GoodsMarket) RegisterBuyer(b domain.GoodsBuyer) {
	m.buyers[b.ID()] = b
}

// RegisterSeller grants s the goods-seller capability on this market.
func (m *GoodsMarket) RegisterSeller(s domain.GoodsSeller) {
	m.sellers[s.ID()] = s
}

// AddOrder submits a signed-quantity order: positive sells goodsType,
// negative buys it. Sell orders shrink to the inventory actually
// allocated; buy orders shrink in proportion to the cash actually
// allocated. A zero allocation rejects the order outright.
func (m *GoodsMarket) AddOrder(party, goodsType string, quantity, price float64) error {
	if price < 0 {
		return &domain.OrderError{Reason: "negative price"}
	}
	if quantity == 0 {
		return &domain.OrderError{Reason: "zero quantity"}
	}
	ins := m.instrument(goodsType)

	if quantity > 0 {
		seller, ok := m.sellers[party]
		if !ok {
			return &domain.OrderError{Reason: "party " + party + " lacks the goods-seller capability"}
		}
		actual := seller.AllocateGoods(goodsType, quantity)
		if actual <= 0 {
			return &domain.AllocationError{Resource: "goods:" + goodsType, Requested: quantity}
		}
		ins.RegisterSeller(party)
		o := book.NewOrder(party, book.Sell, actual, price)
		if err := ins.InsertOrder(o); err != nil {
			seller.DisallocateGoods(goodsType, actual)
			return err
		}
		return nil
	}

	buyer, ok := m.buyers[party]
	if !ok {
		return &domain.OrderError{Reason: "party " + party + " lacks the goods-buyer capability"}
	}
	size := -quantity
	if existing, ok := ins.BidFor(party); ok {
		return m.mergeBid(ins, buyer, existing, size, price)
	}
	if price > 0 {
		cash := buyer.AllocateCash(price * size)
		if cash <= 0 {
			return &domain.AllocationError{Resource: "cash", Requested: price * size}
		}
		size = cash / price
	}
	o := book.NewOrder(party, book.Buy, size, price)
	if err := ins.InsertOrder(o); err != nil {
		buyer.DisallocateCash(price * size)
		return err
	}
	return nil
}

// mergeBid absorbs a re-submitted buy into the party's live bid. The
// merge re-prices the whole order, so the old reservation is returned
// and the merged open quantity is re-reserved at the new price. The
// merged order shrinks to whatever cash was actually allocated,
// keeping the reservation equal to open size times price.
func (m *GoodsMarket) mergeBid(ins *book.Instrument, buyer domain.GoodsBuyer, existing *book.Order, size, price float64) error {
	merged := existing.OpenSize() + size
	buyer.DisallocateCash(existing.OpenSize() * existing.Price)
	if price > 0 {
		cash := buyer.AllocateCash(price * merged)
		if cash <= 0 {
			return &domain.AllocationError{Resource: "cash", Requested: price * merged}
		}
		merged = cash / price
	}
	return ins.ReviseOrder(existing, merged, price)
}

// Process matches every instrument in creation order. The first
// InvariantError terminates this market's processing for the cycle.
func (m *GoodsMarket) Process() error {
	for _, key := range m.keys {
		rec, err := m.instruments[key].MatchOrders()
		if err != nil {
			return err
		}
		if rec.Volume > 0 {
			m.log.Debug("session cleared",
				zap.String("goods", key),
				zap.Float64("volume", rec.Volume),
				zap.Float64("price", rec.Price))
		}
	}
	return nil
}

// CancelAllOrders force-cancels every open order on every instrument.
func (m *GoodsMarket) CancelAllOrders() {
	for _, key := range m.keys {
		m.instruments[key].CancelOrders()
	}
}

// Instrument returns the order book for goodsType, if it exists.
func (m *GoodsMarket) Instrument(goodsType string) (*book.Instrument, bool) {
	ins, ok := m.instruments[goodsType]
	return ins, ok
}

// InstrumentKeys returns the goods types seen so far, in creation
// order.
func (m *GoodsMarket) InstrumentKeys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// InstrumentByKey returns the order book for the goods type named by
// key, if it exists.
func (m *GoodsMarket) InstrumentByKey(key string) (*book.Instrument, bool) {
	return m.Instrument(key)
}

// Trades returns every goods-for-cash transaction settled so far.
func (m *GoodsMarket) Trades() []*domain.GoodsTrade { return m.trades }

// instrument lazily creates the order book for goodsType.
func (m *GoodsMarket) instrument(goodsType string) *book.Instrument {
	if ins, ok := m.instruments[goodsType]; ok {
		return ins
	}
	ins := book.NewInstrument(book.Config{
		Key:                    fmt.Sprintf("%s/%s", m.name, goodsType),
		Algorithm:              m.algo,
		HistoryWindow:          m.historyWindow,
		MergeResubmittedOrders: true,
		Epsilon:                m.epsilon,
		Settle:                 m.settler(goodsType),
		Release:                m.releaser(goodsType),
		Log:                    m.log,
	})
	m.instruments[goodsType] = ins
	m.keys = append(m.keys, goodsType)
	return ins
}

// settler builds the goods-for-cash settlement callback for one
// goods type.
func (m *GoodsMarket) settler(goodsType string) book.SettleFunc {
	return func(buy, sell *book.Order, volume, price float64) error {
		buyer, ok := m.buyers[buy.Party]
		if !ok {
			return &domain.InvariantError{Message: "matched buyer " + buy.Party + " is not registered"}
		}
		seller, ok := m.sellers[sell.Party]
		if !ok {
			return &domain.InvariantError{Message: "matched seller " + sell.Party + " is not registered"}
		}
		// The buyer's reservation was made at its limit price, so it
		// is released at the limit price regardless of the clearing
		// price.
		reserved := volume * buy.Price
		buyer.DisallocateCash(reserved)
		trade, err := domain.SettleGoodsForCash(buyer, seller, goodsType, volume, price)
		if err != nil {
			buyer.AllocateCash(reserved)
			return err
		}
		m.trades = append(m.trades, trade)
		return nil
	}
}

// releaser builds the cancellation callback: buy orders release cash,
// sell orders release inventory.
func (m *GoodsMarket) releaser(goodsType string) book.ReleaseFunc {
	return func(o *book.Order) {
		if o.Side == book.Buy {
			if buyer, ok := m.buyers[o.Party]; ok {
				buyer.DisallocateCash(o.OpenSize() * o.Price)
			}
			return
		}
		if seller, ok := m.sellers[o.Party]; ok {
			seller.DisallocateGoods(goodsType, o.OpenSize())
		}
	}
}
