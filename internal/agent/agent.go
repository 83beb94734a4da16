// Package agent provides reference participants implementing the
// capability contracts consumed by the clearing core. They hold
// balances and honor the credit/debit/allocate discipline; the
// behavioral rules that decide what to trade live elsewhere.
package agent

import (
	"github.com/efreitasn/clearsim/internal/domain"
)

// Agent is an in-memory participant. One struct carries every
// capability; which roles an agent actually plays is decided by where
// it is registered (clearing house role maps, market participant
// sets).
type Agent struct {
	id string

	cash          float64
	allocatedCash float64

	goods          map[string]float64
	allocatedGoods map[string]float64
	sellingPrice   map[string]float64

	labour          float64
	allocatedLabour float64
	employment      *domain.LabourContract

	stockAccounts map[string]*domain.StockAccount
}

// New creates an agent with the given identity and starting cash.
func New(id string, cash float64) *Agent {
	return &Agent{
		id:             id,
		cash:           cash,
		goods:          make(map[string]float64),
		allocatedGoods: make(map[string]float64),
		sellingPrice:   make(map[string]float64),
		stockAccounts:  make(map[string]*domain.StockAccount),
	}
}

// ID returns the agent's identity.
func (a *Agent) ID() string { return a.id }

// Cash returns the agent's total cash, reserved or not.
func (a *Agent) Cash() float64 { return a.cash }

// Credit withdraws up to amount, failing with ErrInsufficientFunds
// when total cash cannot cover it. Reserved cash is drawn last.
func (a *Agent) Credit(amount float64) (float64, error) {
	if amount < 0 {
		return 0, &domain.InvariantError{Message: "negative credit amount"}
	}
	if a.cash < amount-1e-12 {
		return 0, domain.ErrInsufficientFunds
	}
	if amount > a.cash {
		amount = a.cash
	}
	a.cash -= amount
	if a.allocatedCash > a.cash {
		a.allocatedCash = a.cash
	}
	return amount, nil
}

// Debit deposits amount.
func (a *Agent) Debit(amount float64) {
	if amount < 0 {
		return
	}
	a.cash += amount
}

// AllocateCash reserves up to amount of unallocated cash.
func (a *Agent) AllocateCash(amount float64) float64 {
	free := a.cash - a.allocatedCash
	if amount > free {
		amount = free
	}
	if amount < 0 {
		amount = 0
	}
	a.allocatedCash += amount
	return amount
}

// DisallocateCash releases up to amount of reserved cash.
func (a *Agent) DisallocateCash(amount float64) float64 {
	if amount > a.allocatedCash {
		amount = a.allocatedCash
	}
	if amount < 0 {
		amount = 0
	}
	a.allocatedCash -= amount
	return amount
}

// UnallocatedCash returns cash not reserved by live orders.
func (a *Agent) UnallocatedCash() float64 {
	return a.cash - a.allocatedCash
}

// CashFlowInjection deposits amount from outside the closed system.
func (a *Agent) CashFlowInjection(amount float64) {
	if amount < 0 {
		return
	}
	a.cash += amount
}

// CashReserveValue returns total cash; for the reference agent the
// whole balance is the lending reserve.
func (a *Agent) CashReserveValue() float64 { return a.cash }

// GoodsOwned returns the inventory of goodsType.
func (a *Agent) GoodsOwned(goodsType string) float64 { return a.goods[goodsType] }

// AddGoods grows the inventory of goodsType.
func (a *Agent) AddGoods(goodsType string, amount float64) {
	if amount < 0 {
		return
	}
	a.goods[goodsType] += amount
}

// RemoveGoods shrinks the inventory of goodsType, returning the
// quantity actually removed.
func (a *Agent) RemoveGoods(goodsType string, amount float64) float64 {
	owned := a.goods[goodsType]
	if amount > owned {
		amount = owned
	}
	if amount < 0 {
		amount = 0
	}
	a.goods[goodsType] = owned - amount
	if a.allocatedGoods[goodsType] > a.goods[goodsType] {
		a.allocatedGoods[goodsType] = a.goods[goodsType]
	}
	return amount
}

// AllocateGoods reserves up to amount of unreserved goodsType inventory.
func (a *Agent) AllocateGoods(goodsType string, amount float64) float64 {
	free := a.goods[goodsType] - a.allocatedGoods[goodsType]
	if amount > free {
		amount = free
	}
	if amount < 0 {
		amount = 0
	}
	a.allocatedGoods[goodsType] += amount
	return amount
}

// DisallocateGoods releases up to amount of reserved goodsType inventory.
func (a *Agent) DisallocateGoods(goodsType string, amount float64) float64 {
	if amount > a.allocatedGoods[goodsType] {
		amount = a.allocatedGoods[goodsType]
	}
	if amount < 0 {
		amount = 0
	}
	a.allocatedGoods[goodsType] -= amount
	return amount
}

// SetGoodsSellingPrice fixes the posted selling price for goodsType.
func (a *Agent) SetGoodsSellingPrice(goodsType string, price float64) {
	a.sellingPrice[goodsType] = price
}

// GoodsSellingPrice returns the posted selling price for goodsType.
func (a *Agent) GoodsSellingPrice(goodsType string) float64 {
	return a.sellingPrice[goodsType]
}

// SetLabour fixes the agent's labour endowment.
func (a *Agent) SetLabour(amount float64) { a.labour = amount }

// LabourOwned returns the agent's labour endowment.
func (a *Agent) LabourOwned() float64 { return a.labour }

// AllocateLabour reserves up to amount of unreserved labour.
func (a *Agent) AllocateLabour(amount float64) float64 {
	free := a.labour - a.allocatedLabour
	if amount > free {
		amount = free
	}
	if amount < 0 {
		amount = 0
	}
	a.allocatedLabour += amount
	return amount
}

// DisallocateLabour releases up to amount of reserved labour.
func (a *Agent) DisallocateLabour(amount float64) float64 {
	if amount > a.allocatedLabour {
		amount = a.allocatedLabour
	}
	if amount < 0 {
		amount = 0
	}
	a.allocatedLabour -= amount
	return amount
}

// RemoveLabour hands over up to amount of labour, returning the
// quantity actually removed.
func (a *Agent) RemoveLabour(amount float64) float64 {
	if amount > a.labour {
		amount = a.labour
	}
	if amount < 0 {
		amount = 0
	}
	a.labour -= amount
	if a.allocatedLabour > a.labour {
		a.allocatedLabour = a.labour
	}
	return amount
}

// AddLabour receives labour bought on the labour market.
func (a *Agent) AddLabour(amount float64) {
	if amount < 0 {
		return
	}
	a.labour += amount
}

// StartEmployment binds the agent to a labour contract. It fails with
// ErrDoubleEmployment if the agent is already under contract.
func (a *Agent) StartEmployment(c *domain.LabourContract) error {
	if a.employment != nil {
		return domain.ErrDoubleEmployment
	}
	a.employment = c
	return nil
}

// EndEmployment releases the agent from c. Ending a contract the
// agent is not under is a no-op.
func (a *Agent) EndEmployment(c *domain.LabourContract) {
	if a.employment == c {
		a.employment = nil
	}
}

// Employed reports whether the agent is under a labour contract.
func (a *Agent) Employed() bool { return a.employment != nil }

// StockAccount returns the agent's position in ticker, if any.
func (a *Agent) StockAccount(ticker string) (*domain.StockAccount, bool) {
	acc, ok := a.stockAccounts[ticker]
	return acc, ok
}

// OpenStockAccount creates the agent's position in ticker, or returns
// the existing one unchanged.
func (a *Agent) OpenStockAccount(ticker string, shares float64) *domain.StockAccount {
	if acc, ok := a.stockAccounts[ticker]; ok {
		return acc
	}
	acc := &domain.StockAccount{Ticker: ticker, HolderID: a.id, Quantity: shares}
	a.stockAccounts[ticker] = acc
	return acc
}

// SharesOwnedIn returns the agent's share count in ticker.
func (a *Agent) SharesOwnedIn(ticker string) float64 {
	if acc, ok := a.stockAccounts[ticker]; ok {
		return acc.Quantity
	}
	return 0
}
