package market

import (
	"sort"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/distribution"
	"github.com/efreitasn/clearsim/internal/domain"
)

// StockMarket collects per-ticker buy and sell intentions from
// stockholders and settles them once per cycle through a share
// distribution algorithm (central payment or erase-and-replace,
// chosen at construction). There is no order book: the issuer is the
// sole counterparty on every ticker, so pairing is direct.
type StockMarket struct {
	name     string
	registry *domain.StockRegistry
	dist     distribution.Algorithm

	holders map[string]domain.StockHolder
	issuers map[string]domain.CashHolder // ticker → issuer

	// requests accumulates the session's signed cash volumes per
	// ticker: positive buys, negative sells.
	requests map[string]map[domain.ExchangeKey]*pendingRequest

	log *zap.Logger
}

// pendingRequest pairs a key's net signed cash volume with the buy
// cash actually reserved for it. The two diverge when a holder both
// buys and sells a ticker in one cycle: the volume nets, the
// reservation stays gross.
type pendingRequest struct {
	exchange domain.ResourceExchange
	reserved float64
}

// NewStockMarket creates a stock market settling with dist.
func NewStockMarket(name string, registry *domain.StockRegistry, dist distribution.Algorithm, log *zap.Logger) *StockMarket {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockMarket{
		name:     name,
		registry: registry,
		dist:     dist,
		holders:  make(map[string]domain.StockHolder),
		issuers:  make(map[string]domain.CashHolder),
		requests: make(map[string]map[domain.ExchangeKey]*pendingRequest),
		log:      log.Named("stock").With(zap.String("market", name)),
	}
}

// Name implements Market.
func (m *StockMarket) Name() string { return m.name }

// RegisterStockHolder admits h to the market. Every current
// shareholder of a traded ticker must be registered, because the
// share distributions operate over the whole known cap table.
func (m *StockMarket) RegisterStockHolder(h domain.StockHolder) {
	m.holders[h.ID()] = h
}

// RegisterIssuer binds a listed ticker to its issuing participant.
func (m *StockMarket) RegisterIssuer(ticker string, issuer domain.CashHolder) {
	m.issuers[ticker] = issuer
}

// SubmitBuyOrder registers a desire to invest cashAmount into ticker
// this cycle. The cash is reserved until the market processes or
// cancels.
func (m *StockMarket) SubmitBuyOrder(holderID, ticker string, cashAmount float64) error {
	if cashAmount <= 0 {
		return &domain.OrderError{Reason: "buy amount must be positive"}
	}
	holder, issuer, err := m.participants(holderID, ticker)
	if err != nil {
		return err
	}
	actual := holder.AllocateCash(cashAmount)
	if actual <= 0 {
		return &domain.AllocationError{Resource: "cash", Requested: cashAmount}
	}
	pps, _ := m.registry.PricePerShare(ticker)
	m.addRequest(ticker, holderID, issuer.ID(), actual, pps, actual)
	return nil
}

// SubmitSellOrder registers a desire to sell shares of ticker this
// cycle, expressed in shares and recorded as negative cash volume at
// the registry price.
func (m *StockMarket) SubmitSellOrder(holderID, ticker string, shares float64) error {
	if shares <= 0 {
		return &domain.OrderError{Reason: "sell quantity must be positive"}
	}
	holder, issuer, err := m.participants(holderID, ticker)
	if err != nil {
		return err
	}
	owned := holder.SharesOwnedIn(ticker)
	if shares > owned {
		shares = owned
	}
	if shares <= 0 {
		return &domain.AllocationError{Resource: "shares:" + ticker, Requested: shares}
	}
	pps, _ := m.registry.PricePerShare(ticker)
	m.addRequest(ticker, holderID, issuer.ID(), -shares*pps, pps, 0)
	return nil
}

// Process settles every ticker with pending requests, in ticker
// order. Buy-side cash reservations are released just before the
// distribution moves the cash for real.
func (m *StockMarket) Process() error {
	tickers := make([]string, 0, len(m.requests))
	for t := range m.requests {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		requests := m.requests[ticker]
		delete(m.requests, ticker)
		if len(requests) == 0 {
			continue
		}
		m.releaseReservations(requests)
		exchanges := make(map[domain.ExchangeKey]domain.ResourceExchange, len(requests))
		for key, p := range requests {
			exchanges[key] = p.exchange
		}

		issuer := m.issuers[ticker]
		volume, rate, err := m.dist.DistributeResources(
			asCashHolders(m.holders),
			map[string]domain.CashHolder{issuer.ID(): issuer},
			exchanges,
		)
		if err != nil {
			return err
		}
		m.log.Debug("shares distributed",
			zap.String("ticker", ticker),
			zap.Float64("cash_volume", volume),
			zap.Float64("price_per_share", rate))
	}
	return nil
}

// CancelAllOrders drops every pending request, releasing buy-side
// cash reservations.
func (m *StockMarket) CancelAllOrders() {
	for ticker, requests := range m.requests {
		m.releaseReservations(requests)
		delete(m.requests, ticker)
	}
}

func (m *StockMarket) participants(holderID, ticker string) (domain.StockHolder, domain.CashHolder, error) {
	holder, ok := m.holders[holderID]
	if !ok {
		return nil, nil, &domain.OrderError{Reason: "party " + holderID + " lacks the stockholder capability"}
	}
	issuer, ok := m.issuers[ticker]
	if !ok {
		return nil, nil, &domain.OrderError{Reason: "no issuer registered for " + ticker}
	}
	return holder, issuer, nil
}

func (m *StockMarket) addRequest(ticker, holderID, issuerID string, cashVolume, pps, reserved float64) {
	if m.requests[ticker] == nil {
		m.requests[ticker] = make(map[domain.ExchangeKey]*pendingRequest)
	}
	key := domain.ExchangeKey{ConsumerID: holderID, SupplierID: issuerID}
	pending := m.requests[ticker][key]
	if pending == nil {
		pending = &pendingRequest{}
		m.requests[ticker][key] = pending
	}
	pending.exchange = domain.ResourceExchange{
		Volume: pending.exchange.Volume + cashVolume,
		Rate:   pps,
	}
	pending.reserved += reserved
}

func (m *StockMarket) releaseReservations(requests map[domain.ExchangeKey]*pendingRequest) {
	for key, p := range requests {
		if p.reserved <= 0 {
			continue
		}
		if holder, ok := m.holders[key.ConsumerID]; ok {
			holder.DisallocateCash(p.reserved)
		}
	}
}
