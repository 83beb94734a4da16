package distribution

import (
	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
)

// EraseAndReplace performs a full cap-table replacement for one
// issuer: desired investments are normalized to fractions of their
// aggregate and all outstanding shares are reassigned proportionally,
// with no compensating cash transfer. Consumers absent from the
// request map end up with a zero position, so the consumer map must
// cover every current shareholder.
type EraseAndReplace struct {
	registry *domain.StockRegistry
	log      *zap.Logger
}

// NewEraseAndReplace creates the cap-table replacement variant.
func NewEraseAndReplace(registry *domain.StockRegistry, log *zap.Logger) *EraseAndReplace {
	if log == nil {
		log = zap.NewNop()
	}
	return &EraseAndReplace{registry: registry, log: log}
}

// DistributeResources implements Algorithm. It returns the total
// aggregate investment and the implied price per share.
func (e *EraseAndReplace) DistributeResources(
	consumers map[string]domain.CashHolder,
	suppliers map[string]domain.CashHolder,
	requests map[domain.ExchangeKey]domain.ResourceExchange,
) (float64, float64, error) {
	issuer, err := soleSupplier(suppliers)
	if err != nil {
		return 0, 0, err
	}
	ticker, err := e.registry.TickerIssuedBy(issuer.ID())
	if err != nil {
		return 0, 0, &domain.InvariantError{Message: "supplier " + issuer.ID() + " issues no listed ticker"}
	}
	total, err := e.registry.TotalShares(ticker)
	if err != nil || total <= 0 {
		return 0, 0, &domain.InvariantError{Message: "no positive share total for " + ticker}
	}

	// Aggregate desired investment per shareholder.
	investment := make(map[string]float64, len(consumers))
	var aggregate float64
	for _, k := range domain.SortedExchangeKeys(requests) {
		v := requests[k].Volume
		if v < 0 {
			return 0, 0, &domain.InvariantError{Message: "negative investment from " + k.ConsumerID}
		}
		investment[k.ConsumerID] += v
		aggregate += v
	}
	if aggregate < epsilon {
		return 0, 0, nil
	}

	// Replace every consumer's position with its fraction of the
	// outstanding shares.
	for _, id := range domain.SortedIDs(consumers) {
		holder, err := asStockHolder(consumers[id])
		if err != nil {
			return 0, 0, err
		}
		acc := holder.OpenStockAccount(ticker, 0)
		acc.SetQuantity(investment[id] / aggregate * total)
	}

	pps := aggregate / total
	if err := e.registry.SetPricePerShare(ticker, pps); err != nil {
		return 0, 0, &domain.InvariantError{Message: "cannot reprice " + ticker}
	}
	return aggregate, pps, nil
}
