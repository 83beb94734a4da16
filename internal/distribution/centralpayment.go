package distribution

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
)

// driftTolerance bounds the pre-rescale relative drift the flattening
// step will silently absorb. Larger drifts signal a real computation
// bug, not rounding, and surface as InvariantErrors.
const driftTolerance = 1e-6

// CentralPayment distributes one issuer's shares through a central
// pot. Buyers are rationed by a single scalar when aggregate buy
// volume exceeds aggregate sell volume; their cash flows through the
// issuer to the sellers, who are rationed proportionally against the
// shares actually bought. After all transfers every known
// shareholder's position is rescaled so total outstanding shares
// exactly match the pre-session total — the flattening step is part
// of the conservation contract.
//
// Request volumes are signed cash amounts: positive buys, negative
// sells. The rate is ignored; the registry's price per share governs.
type CentralPayment struct {
	registry *domain.StockRegistry
	log      *zap.Logger
}

// NewCentralPayment creates the central-payment share distribution.
func NewCentralPayment(registry *domain.StockRegistry, log *zap.Logger) *CentralPayment {
	if log == nil {
		log = zap.NewNop()
	}
	return &CentralPayment{registry: registry, log: log}
}

// DistributeResources implements Algorithm. The consumer map must
// contain every current shareholder of the issuer's ticker so the
// flattening step can see the whole cap table.
func (c *CentralPayment) DistributeResources(
	consumers map[string]domain.CashHolder,
	suppliers map[string]domain.CashHolder,
	requests map[domain.ExchangeKey]domain.ResourceExchange,
) (float64, float64, error) {
	issuer, err := soleSupplier(suppliers)
	if err != nil {
		return 0, 0, err
	}
	ticker, err := c.registry.TickerIssuedBy(issuer.ID())
	if err != nil {
		return 0, 0, &domain.InvariantError{Message: "supplier " + issuer.ID() + " issues no listed ticker"}
	}
	pps, err := c.registry.PricePerShare(ticker)
	if err != nil || pps <= 0 {
		return 0, 0, &domain.InvariantError{Message: "no positive price per share for " + ticker}
	}
	preTotal, err := c.registry.TotalShares(ticker)
	if err != nil {
		return 0, 0, &domain.InvariantError{Message: "no share total for " + ticker}
	}

	keys := domain.SortedExchangeKeys(requests)

	// Aggregate desired volumes in shares.
	var buyShares, sellShares float64
	for _, k := range keys {
		v := requests[k].Volume
		if v > 0 {
			buyShares += v / pps
		} else {
			sellShares += -v / pps
		}
	}

	buyFactor := 1.0
	if buyShares > sellShares && buyShares > 0 {
		buyFactor = sellShares / buyShares
	}

	// Buyers: rationed cash flows into the pot, shares onto their
	// accounts. A buyer who cannot pay is skipped without affecting
	// the others.
	var bought, cashVolume float64
	for _, k := range keys {
		v := requests[k].Volume
		if v <= 0 {
			continue
		}
		holder, err := c.holder(consumers, k.ConsumerID)
		if err != nil {
			return 0, 0, err
		}
		shares := (v / pps) * buyFactor
		if shares < epsilon {
			continue
		}
		paid, err := holder.Credit(shares * pps)
		if err != nil {
			c.log.Info("share buyer skipped",
				zap.String("holder", k.ConsumerID),
				zap.Error(err))
			continue
		}
		issuer.Debit(paid)
		acc := holder.OpenStockAccount(ticker, 0)
		acc.SetQuantity(acc.Quantity + shares)
		bought += shares
		cashVolume += paid
	}

	// Sellers: rationed proportionally against the shares actually
	// bought, paid out of the pot.
	sellFactor := 0.0
	if sellShares > 0 {
		sellFactor = bought / sellShares
		if sellFactor > 1 {
			sellFactor = 1
		}
	}
	for _, k := range keys {
		v := requests[k].Volume
		if v >= 0 {
			continue
		}
		holder, err := c.holder(consumers, k.ConsumerID)
		if err != nil {
			return 0, 0, err
		}
		shares := (-v / pps) * sellFactor
		if shares < epsilon {
			continue
		}
		acc, ok := holder.StockAccount(ticker)
		if !ok || acc.Quantity <= 0 {
			c.log.Info("share seller skipped, no position",
				zap.String("holder", k.ConsumerID))
			continue
		}
		if shares > acc.Quantity {
			shares = acc.Quantity
		}
		proceeds, err := issuer.Credit(shares * pps)
		if err != nil {
			c.log.Info("share seller skipped, pot exhausted",
				zap.String("holder", k.ConsumerID),
				zap.Error(err))
			continue
		}
		acc.SetQuantity(acc.Quantity - shares)
		holder.Debit(proceeds)
	}

	// Flattening: force total outstanding shares back to the
	// pre-session figure, absorbing floating-point drift only.
	if err := c.flatten(consumers, issuer, ticker, preTotal); err != nil {
		return 0, 0, err
	}

	return cashVolume, pps, nil
}

// flatten rescales every known shareholder's position by a global
// ratio so the cap table sums to preTotal again. Drift beyond
// driftTolerance is a conservation bug and reported instead of
// corrected.
func (c *CentralPayment) flatten(
	consumers map[string]domain.CashHolder,
	issuer domain.CashHolder,
	ticker string,
	preTotal float64,
) error {
	holders := make([]domain.StockHolder, 0, len(consumers)+1)
	for _, id := range domain.SortedIDs(consumers) {
		h, err := c.holder(consumers, id)
		if err != nil {
			return err
		}
		holders = append(holders, h)
	}
	if ih, ok := issuer.(domain.StockHolder); ok {
		holders = append(holders, ih)
	}

	var current float64
	for _, h := range holders {
		current += h.SharesOwnedIn(ticker)
	}
	if current <= 0 || preTotal <= 0 {
		return nil
	}

	ratio := preTotal / current
	if drift := math.Abs(ratio - 1); drift > driftTolerance {
		return &domain.InvariantError{
			Message: fmt.Sprintf("share conservation drift %.3e on %s exceeds tolerance", drift, ticker),
		}
	}
	for _, h := range holders {
		if acc, ok := h.StockAccount(ticker); ok {
			acc.SetQuantity(acc.Quantity * ratio)
		}
	}
	return nil
}

func (c *CentralPayment) holder(consumers map[string]domain.CashHolder, id string) (domain.StockHolder, error) {
	h, ok := consumers[id]
	if !ok {
		return nil, &domain.InvariantError{Message: "unknown consumer " + id}
	}
	return asStockHolder(h)
}
