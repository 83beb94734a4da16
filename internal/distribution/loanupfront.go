package distribution

import (
	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
)

// overdraftGuard scales each lender's ration factor slightly below 1
// so rounding in the rationed loan sums cannot overdraw the freshly
// injected liquidity.
const overdraftGuard = 1 - 1e-9

// LoanUpfront originates loans after an upfront liquidity check per
// lender: when a lender's aggregate desired outflow exceeds its
// unallocated cash, the difference is injected explicitly, and one
// ration factor derived from the resulting liquidity is applied
// uniformly to every loan that lender originates this session.
type LoanUpfront struct {
	factory domain.LoanFactory
	log     *zap.Logger
	created []*domain.Loan
}

// NewLoanUpfront creates the upfront-injection loan distribution.
func NewLoanUpfront(factory domain.LoanFactory, log *zap.Logger) *LoanUpfront {
	if factory == nil {
		factory = domain.NewLoan
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanUpfront{factory: factory, log: log}
}

// Contracts returns every loan contract opened so far, in creation
// order.
func (a *LoanUpfront) Contracts() []*domain.Loan { return a.created }

// DistributeResources implements Algorithm.
func (a *LoanUpfront) DistributeResources(
	consumers map[string]domain.CashHolder,
	suppliers map[string]domain.CashHolder,
	requests map[domain.ExchangeKey]domain.ResourceExchange,
) (float64, float64, error) {
	keys := domain.SortedExchangeKeys(requests)

	// Aggregate desired outflow per lender.
	desired := make(map[string]float64, len(suppliers))
	for _, k := range keys {
		if v := requests[k].Volume; v > 0 {
			desired[k.SupplierID] += v
		}
	}

	// Upfront injections and per-lender ration factors.
	factors := make(map[string]float64, len(desired))
	for _, id := range domain.SortedIDs(desired) {
		s, ok := suppliers[id]
		if !ok {
			return 0, 0, &domain.InvariantError{Message: "unknown lender " + id}
		}
		lender, err := asLender(s)
		if err != nil {
			return 0, 0, err
		}
		want := desired[id]
		if want < epsilon {
			continue
		}
		if shortfall := want - lender.UnallocatedCash(); shortfall > 0 {
			a.log.Info("lender liquidity injection",
				zap.String("lender", id),
				zap.Float64("shortfall", shortfall))
			lender.CashFlowInjection(shortfall)
		}
		factor := lender.UnallocatedCash() / want * overdraftGuard
		if factor > overdraftGuard {
			factor = overdraftGuard
		}
		factors[id] = factor
	}

	// Create the rationed contracts. An individual failure skips
	// that loan only.
	var volume, rateVolume float64
	for _, k := range keys {
		exchange := requests[k]
		if exchange.Volume < epsilon {
			continue
		}
		borrower, ok := consumers[k.ConsumerID]
		if !ok {
			return 0, 0, &domain.InvariantError{Message: "unknown borrower " + k.ConsumerID}
		}
		s, ok := suppliers[k.SupplierID]
		if !ok {
			return 0, 0, &domain.InvariantError{Message: "unknown lender " + k.SupplierID}
		}
		lender, err := asLender(s)
		if err != nil {
			return 0, 0, err
		}
		amount := exchange.Volume * factors[k.SupplierID]
		if amount < epsilon {
			continue
		}
		loan, err := a.factory(borrower, lender, amount, exchange.Rate)
		if err != nil {
			a.log.Info("loan creation skipped",
				zap.String("borrower", k.ConsumerID),
				zap.String("lender", k.SupplierID),
				zap.Error(err))
			continue
		}
		a.created = append(a.created, loan)
		volume += loan.Principal
		rateVolume += loan.Principal * exchange.Rate
	}

	if volume == 0 {
		return 0, 0, nil
	}
	return volume, rateVolume / volume, nil
}
