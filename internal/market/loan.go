package market

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/book"
	"github.com/efreitasn/clearsim/internal/distribution"
	"github.com/efreitasn/clearsim/internal/domain"
	"github.com/efreitasn/clearsim/internal/matching"
)

// LoanMarket matches borrower demand against lender supply per
// maturity and hands the matched pairs to a loan distribution
// algorithm for settlement. The matching phase only discovers
// compatible counterparties; reserve constraints, leverage-circle
// routing and rationing live in the distribution variant the market
// was constructed with.
type LoanMarket struct {
	name string
	algo matching.Algorithm
	dist distribution.Algorithm

	borrowers map[string]domain.Borrower
	lenders   map[string]domain.Lender

	instruments map[int]*book.Instrument
	maturities  []int

	// requests accumulates the current session's matched exchanges
	// per maturity while the instrument matches.
	requests map[domain.ExchangeKey]domain.ResourceExchange

	historyWindow int
	epsilon       float64
	log           *zap.Logger
}

// NewLoanMarket creates a loan market pairing with algo and settling
// with dist.
func NewLoanMarket(name string, algo matching.Algorithm, dist distribution.Algorithm, historyWindow int, epsilon float64, log *zap.Logger) *LoanMarket {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanMarket{
		name:          name,
		algo:          algo,
		dist:          dist,
		borrowers:     make(map[string]domain.Borrower),
		lenders:       make(map[string]domain.Lender),
		instruments:   make(map[int]*book.Instrument),
		historyWindow: historyWindow,
		epsilon:       epsilon,
		log:           log.Named("loan").With(zap.String("market", name)),
	}
}

// Name implements Market.
func (m *LoanMarket) Name() string { return m.name }

// RegisterBorrower grants b the borrowing capability.
func (m *LoanMarket) RegisterBorrower(b domain.Borrower) {
	m.borrowers[b.ID()] = b
}

// RegisterLender grants l the lending capability.
func (m *LoanMarket) RegisterLender(l domain.Lender) {
	m.lenders[l.ID()] = l
}

// AddOrder submits a signed-quantity order on the given maturity:
// positive supplies principal at a minimum interest rate, negative
// demands principal at a maximum rate. Supply is capped at the
// lender's unallocated cash; the cash itself stays unreserved because
// the distribution algorithm owns the reserve constraint.
func (m *LoanMarket) AddOrder(party string, maturity int, quantity, rate float64) error {
	if rate < 0 {
		return &domain.OrderError{Reason: "negative interest rate"}
	}
	if quantity == 0 {
		return &domain.OrderError{Reason: "zero quantity"}
	}
	if maturity < 1 {
		return &domain.OrderError{Reason: "maturity must be at least one cycle"}
	}
	ins := m.instrument(maturity)

	if quantity > 0 {
		lender, ok := m.lenders[party]
		if !ok {
			return &domain.OrderError{Reason: "party " + party + " lacks the lender capability"}
		}
		size := quantity
		if reserve := lender.UnallocatedCash(); reserve < size {
			size = reserve
		}
		if size <= 0 {
			return &domain.AllocationError{Resource: "cash reserve", Requested: quantity}
		}
		ins.RegisterSeller(party)
		return ins.InsertOrder(book.NewOrder(party, book.Sell, size, rate))
	}

	if _, ok := m.borrowers[party]; !ok {
		return &domain.OrderError{Reason: "party " + party + " lacks the borrower capability"}
	}
	return ins.InsertOrder(book.NewOrder(party, book.Buy, -quantity, rate))
}

// Process matches each maturity and distributes the matched demand
// through the loan algorithm.
func (m *LoanMarket) Process() error {
	for _, maturity := range m.maturities {
		m.requests = make(map[domain.ExchangeKey]domain.ResourceExchange)
		if _, err := m.instruments[maturity].MatchOrders(); err != nil {
			return err
		}
		if len(m.requests) == 0 {
			continue
		}
		volume, rate, err := m.dist.DistributeResources(
			asCashHolders(m.borrowers),
			asCashHolders(m.lenders),
			m.requests,
		)
		if err != nil {
			return err
		}
		m.log.Debug("loans distributed",
			zap.Int("maturity", maturity),
			zap.Float64("volume", volume),
			zap.Float64("rate", rate))
	}
	m.requests = nil
	return nil
}

// CancelAllOrders clears every open order. Loan orders hold no
// reservation, so there is nothing to release.
func (m *LoanMarket) CancelAllOrders() {
	for _, maturity := range m.maturities {
		m.instruments[maturity].CancelOrders()
	}
}

// Instrument returns the order book for maturity, if it exists.
func (m *LoanMarket) Instrument(maturity int) (*book.Instrument, bool) {
	ins, ok := m.instruments[maturity]
	return ins, ok
}

// InstrumentKeys returns the maturities seen so far as decimal
// strings, in creation order.
func (m *LoanMarket) InstrumentKeys() []string {
	out := make([]string, len(m.maturities))
	for i, mat := range m.maturities {
		out[i] = strconv.Itoa(mat)
	}
	return out
}

// InstrumentByKey returns the order book for the maturity named by
// key, if it exists.
func (m *LoanMarket) InstrumentByKey(key string) (*book.Instrument, bool) {
	maturity, err := strconv.Atoi(key)
	if err != nil {
		return nil, false
	}
	return m.Instrument(maturity)
}

func (m *LoanMarket) instrument(maturity int) *book.Instrument {
	if ins, ok := m.instruments[maturity]; ok {
		return ins
	}
	ins := book.NewInstrument(book.Config{
		Key:           fmt.Sprintf("%s/m%d", m.name, maturity),
		Algorithm:     m.algo,
		HistoryWindow: m.historyWindow,
		Epsilon:       m.epsilon,
		Settle:        m.record,
		Log:           m.log,
	})
	m.instruments[maturity] = ins
	m.maturities = append(m.maturities, maturity)
	return ins
}

// record captures a matched borrower/lender pair as a resource
// exchange request; repeated pairs accumulate volume under a
// volume-weighted rate.
func (m *LoanMarket) record(buy, sell *book.Order, volume, rate float64) error {
	key := domain.ExchangeKey{ConsumerID: buy.Party, SupplierID: sell.Party}
	prev := m.requests[key]
	total := prev.Volume + volume
	weighted := rate
	if total > 0 {
		weighted = (prev.Rate*prev.Volume + rate*volume) / total
	}
	m.requests[key] = domain.ResourceExchange{Volume: total, Rate: weighted}
	return nil
}
