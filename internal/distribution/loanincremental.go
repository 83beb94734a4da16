package distribution

import (
	"sort"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
)

// LoanIncremental originates loans borrower by borrower against the
// lenders' live reserves. A lender supplies only up to its
// unallocated cash; once that direct reserve is exhausted the
// borrower's remaining demand is routed through the other lenders'
// reserves (the leverage circle), and whatever still cannot be met is
// absorbed by the originally targeted lender through a liquidity
// injection.
//
// Loans between the same borrower/lender pair accumulate into a
// running contract by principal extension until the aggregation
// ceiling is reached, after which a fresh contract is opened.
type LoanIncremental struct {
	factory domain.LoanFactory
	ceiling float64
	log     *zap.Logger

	// running holds the open contract per borrower/lender pair.
	running map[pairKey]*domain.Loan

	// created collects every contract this algorithm has opened.
	created []*domain.Loan
}

// NewLoanIncremental creates the incremental loan distribution. A
// non-positive ceiling disables aggregation so every grant opens its
// own contract.
func NewLoanIncremental(factory domain.LoanFactory, ceiling float64, log *zap.Logger) *LoanIncremental {
	if factory == nil {
		factory = domain.NewLoan
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanIncremental{
		factory: factory,
		ceiling: ceiling,
		log:     log,
		running: make(map[pairKey]*domain.Loan),
	}
}

// Contracts returns every loan contract opened so far, in creation
// order.
func (a *LoanIncremental) Contracts() []*domain.Loan { return a.created }

// DistributeResources implements Algorithm.
func (a *LoanIncremental) DistributeResources(
	consumers map[string]domain.CashHolder,
	suppliers map[string]domain.CashHolder,
	requests map[domain.ExchangeKey]domain.ResourceExchange,
) (float64, float64, error) {
	lenders := make(map[string]domain.Lender, len(suppliers))
	for id, s := range suppliers {
		l, err := asLender(s)
		if err != nil {
			return 0, 0, err
		}
		lenders[id] = l
	}
	lenderIDs := make([]string, 0, len(lenders))
	for id := range lenders {
		lenderIDs = append(lenderIDs, id)
	}
	sort.Strings(lenderIDs)

	var volume, rateVolume float64
	for _, key := range domain.SortedExchangeKeys(requests) {
		exchange := requests[key]
		if exchange.Volume < epsilon {
			continue
		}
		borrower, ok := consumers[key.ConsumerID]
		if !ok {
			return 0, 0, &domain.InvariantError{Message: "unknown borrower " + key.ConsumerID}
		}
		target, ok := lenders[key.SupplierID]
		if !ok {
			return 0, 0, &domain.InvariantError{Message: "unknown lender " + key.SupplierID}
		}

		remaining := exchange.Volume

		// Direct reserve first.
		grant := remaining
		if r := target.UnallocatedCash(); r < grant {
			grant = r
		}
		granted := a.grant(borrower, target, grant, exchange.Rate)
		remaining -= granted
		volume += granted
		rateVolume += granted * exchange.Rate

		// Leverage circle: other lenders' reserves, in deterministic
		// registration order.
		for _, altID := range lenderIDs {
			if remaining < epsilon {
				break
			}
			if altID == key.SupplierID {
				continue
			}
			alt := lenders[altID]
			g := remaining
			if r := alt.UnallocatedCash(); r < g {
				g = r
			}
			if g < epsilon {
				continue
			}
			got := a.grant(borrower, alt, g, exchange.Rate)
			remaining -= got
			volume += got
			rateVolume += got * exchange.Rate
		}

		// The targeted lender absorbs any shortfall regardless,
		// representing an overdraft obligation upstream.
		if remaining >= epsilon {
			a.log.Info("lender absorbs shortfall",
				zap.String("lender", key.SupplierID),
				zap.String("borrower", key.ConsumerID),
				zap.Float64("shortfall", remaining))
			target.CashFlowInjection(remaining)
			got := a.grant(borrower, target, remaining, exchange.Rate)
			volume += got
			rateVolume += got * exchange.Rate
		}
	}

	if volume == 0 {
		return 0, 0, nil
	}
	return volume, rateVolume / volume, nil
}

// grant extends the pair's running contract or opens a new one, and
// returns the principal actually moved. Settlement failures are
// logged and yield zero.
func (a *LoanIncremental) grant(borrower domain.CashHolder, lender domain.Lender, amount, rate float64) float64 {
	if amount < epsilon {
		return 0
	}
	key := pairKey{borrowerID: borrower.ID(), lenderID: lender.ID()}
	if running, ok := a.running[key]; ok && a.ceiling > 0 && running.Principal+amount <= a.ceiling {
		if err := running.ExtendLoan(amount); err != nil {
			a.log.Info("loan extension skipped",
				zap.String("loan", running.LoanID),
				zap.Error(err))
			return 0
		}
		return amount
	}
	loan, err := a.factory(borrower, lender, amount, rate)
	if err != nil {
		a.log.Info("loan creation skipped",
			zap.String("borrower", key.borrowerID),
			zap.String("lender", key.lenderID),
			zap.Error(err))
		return 0
	}
	a.running[key] = loan
	a.created = append(a.created, loan)
	return loan.Principal
}
