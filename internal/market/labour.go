package market

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/book"
	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/matching"
)

// LabourMarket owns one instrument per contract maturity. Workers
// sell labour, employers buy it at a wage; matches settle into labour
// contracts. Unlike the goods market a second same-side order from
// the same party is rejected, not merged.
type LabourMarket struct {
	name string
	algo matching.Algorithm

	employers map[string]domain.Employer
	workers   map[string]domain.Employee

	instruments map[int]*book.Instrument
	maturities  []int

	historyWindow int
	epsilon       float64
	contracts     []*domain.LabourContract
	log           *zap.Logger
}

// NewLabourMarket creates a labour market matching with algo.
func NewLabourMarket(name string, algo matching.Algorithm, historyWindow int, epsilon float64, log *zap.Logger) *LabourMarket {
	if log == nil {
		log = zap.NewNop()
	}
	return &LabourMarket{
		name:          name,
		algo:          algo,
		employers:     make(map[string]domain.Employer),
		workers:       make(map[string]domain.Employee),
		instruments:   make(map[int]*book.Instrument),
		historyWindow: historyWindow,
		epsilon:       epsilon,
		log:           log.Named("labour").With(zap.String("market", name)),
	}
}

// Name implements Market.
func (m *LabourMarket) Name() string { return m.name }

// RegisterEmployer grants e the labour-buyer capability.
func (m *LabourMarket) RegisterEmployer(e domain.Employer) {
	m.employers[e.ID()] = e
}

// RegisterWorker grants w the labour-seller capability.
func (m *LabourMarket) RegisterWorker(w domain.Employee) {
	m.workers[w.ID()] = w
}

// AddOrder submits a signed-quantity order on the given maturity:
// positive offers labour, negative demands it at the given wage.
func (m *LabourMarket) AddOrder(party string, maturity int, quantity, wage float64) error {
	if wage < 0 {
		return &domain.OrderError{Reason: "negative wage"}
	}
	if quantity == 0 {
		return &domain.OrderError{Reason: "zero quantity"}
	}
	if maturity < 1 {
		return &domain.OrderError{Reason: "maturity must be at least one cycle"}
	}
	ins := m.instrument(maturity)

	if quantity > 0 {
		worker, ok := m.workers[party]
		if !ok {
			return &domain.OrderError{Reason: "party " + party + " lacks the labour-seller capability"}
		}
		actual := worker.AllocateLabour(quantity)
		if actual <= 0 {
			return &domain.AllocationError{Resource: "labour", Requested: quantity}
		}
		ins.RegisterSeller(party)
		o := book.NewOrder(party, book.Sell, actual, wage)
		if err := ins.InsertOrder(o); err != nil {
			worker.DisallocateLabour(actual)
			return err
		}
		return nil
	}

	employer, ok := m.employers[party]
	if !ok {
		return &domain.OrderError{Reason: "party " + party + " lacks the labour-buyer capability"}
	}
	size := -quantity
	if wage > 0 {
		cash := employer.AllocateCash(wage * size)
		if cash <= 0 {
			return &domain.AllocationError{Resource: "cash", Requested: wage * size}
		}
		size = cash / wage
	}
	o := book.NewOrder(party, book.Buy, size, wage)
	if err := ins.InsertOrder(o); err != nil {
		employer.DisallocateCash(wage * size)
		return err
	}
	return nil
}

// Process matches every maturity in creation order.
func (m *LabourMarket) Process() error {
	for _, maturity := range m.maturities {
		rec, err := m.instruments[maturity].MatchOrders()
		if err != nil {
			return err
		}
		if rec.Volume > 0 {
			m.log.Debug("session cleared",
				zap.Int("maturity", maturity),
				zap.Float64("volume", rec.Volume),
				zap.Float64("wage", rec.Price))
		}
	}
	return nil
}

// CancelAllOrders force-cancels every open order on every maturity.
func (m *LabourMarket) CancelAllOrders() {
	for _, maturity := range m.maturities {
		m.instruments[maturity].CancelOrders()
	}
}

// Instrument returns the order book for maturity, if it exists.
func (m *LabourMarket) Instrument(maturity int) (*book.Instrument, bool) {
	ins, ok := m.instruments[maturity]
	return ins, ok
}

// InstrumentKeys returns the maturities seen so far as decimal
// strings, in creation order.
func (m *LabourMarket) InstrumentKeys() []string {
	out := make([]string, len(m.maturities))
	for i, mat := range m.maturities {
		out[i] = strconv.Itoa(mat)
	}
	return out
}

// InstrumentByKey returns the order book for the maturity named by
// key, if it exists.
func (m *LabourMarket) InstrumentByKey(key string) (*book.Instrument, bool) {
	maturity, err := strconv.Atoi(key)
	if err != nil {
		return nil, false
	}
	return m.Instrument(maturity)
}

// Contracts returns every labour contract started so far.
func (m *LabourMarket) Contracts() []*domain.LabourContract { return m.contracts }

func (m *LabourMarket) instrument(maturity int) *book.Instrument {
	if ins, ok := m.instruments[maturity]; ok {
		return ins
	}
	ins := book.NewInstrument(book.Config{
		Key:           fmt.Sprintf("%s/m%d", m.name, maturity),
		Algorithm:     m.algo,
		HistoryWindow: m.historyWindow,
		Epsilon:       m.epsilon,
		Settle:        m.settler(maturity),
		Release:       m.releaser(),
		Log:           m.log,
	})
	m.instruments[maturity] = ins
	m.maturities = append(m.maturities, maturity)
	return ins
}

// settler starts a labour contract per match. A worker already under
// contract fails with DoubleEmployment and that match alone is
// skipped, with both reservations restored.
func (m *LabourMarket) settler(maturity int) book.SettleFunc {
	return func(buy, sell *book.Order, volume, wage float64) error {
		employer, ok := m.employers[buy.Party]
		if !ok {
			return &domain.InvariantError{Message: "matched employer " + buy.Party + " is not registered"}
		}
		worker, ok := m.workers[sell.Party]
		if !ok {
			return &domain.InvariantError{Message: "matched worker " + sell.Party + " is not registered"}
		}
		// Reservations were made at the order's limit wage; release
		// at the limit wage regardless of the clearing wage.
		reserved := volume * buy.Price
		employer.DisallocateCash(reserved)
		worker.DisallocateLabour(volume)
		c, err := domain.NewLabourContract(employer, worker, volume, wage, maturity)
		if err != nil {
			employer.AllocateCash(reserved)
			worker.AllocateLabour(volume)
			return err
		}
		m.contracts = append(m.contracts, c)
		return nil
	}
}

func (m *LabourMarket) releaser() book.ReleaseFunc {
	return func(o *book.Order) {
		if o.Side == book.Buy {
			if employer, ok := m.employers[o.Party]; ok {
				employer.DisallocateCash(o.OpenSize() * o.Price)
			}
			return
		}
		if worker, ok := m.workers[o.Party]; ok {
			worker.DisallocateLabour(o.OpenSize())
		}
	}
}
