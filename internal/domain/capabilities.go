package domain

// Capability contracts implemented by agents outside the clearing
// core. Markets and distribution algorithms only ever touch
// participants through these interfaces; the decision rules that
// generate orders live entirely on the other side of them.

// CashHolder is the base capability every participant carries.
// Credit withdraws cash from the holder and Debit deposits into it;
// allocation marks cash as reserved by a live order without moving it.
type CashHolder interface {
	ID() string

	// Credit withdraws up to amount and returns the sum actually
	// withdrawn. It fails with ErrInsufficientFunds when the holder
	// cannot cover the amount.
	Credit(amount float64) (float64, error)

	// Debit deposits amount into the holder.
	Debit(amount float64)

	// AllocateCash reserves up to amount of unallocated cash and
	// returns the sum actually reserved.
	AllocateCash(amount float64) float64

	// DisallocateCash releases up to amount of reserved cash and
	// returns the sum actually released.
	DisallocateCash(amount float64) float64

	// UnallocatedCash returns the cash not currently reserved.
	UnallocatedCash() float64

	// CashFlowInjection deposits amount from outside the closed
	// system, representing an upstream liquidity obligation.
	CashFlowInjection(amount float64)
}

// GoodsHolder owns typed goods inventory with the same
// allocate/disallocate reservation discipline as cash.
type GoodsHolder interface {
	CashHolder

	GoodsOwned(goodsType string) float64
	AddGoods(goodsType string, amount float64)
	RemoveGoods(goodsType string, amount float64) float64
	AllocateGoods(goodsType string, amount float64) float64
	DisallocateGoods(goodsType string, amount float64) float64
}

// GoodsBuyer marks a participant allowed to submit goods bid orders.
type GoodsBuyer interface {
	GoodsHolder
}

// GoodsSeller marks a participant allowed to submit goods ask orders.
// Sellers must additionally be registered per instrument before their
// asks are accepted.
type GoodsSeller interface {
	GoodsHolder

	GoodsSellingPrice(goodsType string) float64
}

// Employee supplies labour. A worker holds at most one live
// employment at a time; StartEmployment fails with
// ErrDoubleEmployment otherwise.
type Employee interface {
	CashHolder

	LabourOwned() float64
	AllocateLabour(amount float64) float64
	DisallocateLabour(amount float64) float64
	RemoveLabour(amount float64) float64
	StartEmployment(c *LabourContract) error
	EndEmployment(c *LabourContract)
}

// Employer buys labour.
type Employer interface {
	CashHolder

	AddLabour(amount float64)
}

// StockHolder owns share positions keyed by ticker.
type StockHolder interface {
	CashHolder

	// StockAccount returns the holder's position in ticker, if any.
	StockAccount(ticker string) (*StockAccount, bool)

	// OpenStockAccount creates (or returns the existing) position in
	// ticker, seeded with the given share quantity.
	OpenStockAccount(ticker string, shares float64) *StockAccount

	// SharesOwnedIn returns the holder's share count in ticker, zero
	// if no account exists.
	SharesOwnedIn(ticker string) float64
}

// Lender originates loans out of its cash reserve.
type Lender interface {
	CashHolder

	// CashReserveValue returns the lender's total reserve, reserved
	// or not.
	CashReserveValue() float64
}

// Borrower receives loan principal.
type Borrower interface {
	CashHolder
}
