package distribution

import (
	"go.uber.org/zap"

	"github.com/efreitasn/clearsim/internal/domain"
)

// SettleExchange performs one peer-to-peer settlement and returns the
// volume actually exchanged. Rationing, if any, lives in the
// callback, not in the algorithm.
type SettleExchange func(consumer, supplier domain.CashHolder, exchange domain.ResourceExchange) (float64, error)

// PeerToPeer settles every desired exchange through a caller-supplied
// callback and accumulates a trade-weighted mean rate. It carries no
// rationing logic of its own.
type PeerToPeer struct {
	settle SettleExchange
	log    *zap.Logger
}

// NewPeerToPeer creates the delegate-settlement variant.
func NewPeerToPeer(settle SettleExchange, log *zap.Logger) *PeerToPeer {
	if log == nil {
		log = zap.NewNop()
	}
	return &PeerToPeer{settle: settle, log: log}
}

// DistributeResources implements Algorithm.
func (p *PeerToPeer) DistributeResources(
	consumers map[string]domain.CashHolder,
	suppliers map[string]domain.CashHolder,
	requests map[domain.ExchangeKey]domain.ResourceExchange,
) (float64, float64, error) {
	if p.settle == nil {
		return 0, 0, &domain.InvariantError{Message: "peer-to-peer distribution has no settlement callback"}
	}

	var volume, rateVolume float64
	for _, key := range domain.SortedExchangeKeys(requests) {
		exchange := requests[key]
		if exchange.Volume < epsilon {
			continue
		}
		consumer, ok := consumers[key.ConsumerID]
		if !ok {
			return 0, 0, &domain.InvariantError{Message: "unknown consumer " + key.ConsumerID}
		}
		supplier, ok := suppliers[key.SupplierID]
		if !ok {
			return 0, 0, &domain.InvariantError{Message: "unknown supplier " + key.SupplierID}
		}

		actual, err := p.settle(consumer, supplier, exchange)
		if err != nil {
			if domain.IsFatal(err) {
				return 0, 0, err
			}
			p.log.Info("exchange skipped",
				zap.String("consumer", key.ConsumerID),
				zap.String("supplier", key.SupplierID),
				zap.Error(err))
			continue
		}
		volume += actual
		rateVolume += actual * exchange.Rate
	}

	if volume == 0 {
		return 0, 0, nil
	}
	return volume, rateVolume / volume, nil
}
