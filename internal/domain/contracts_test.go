package domain

import (
	"errors"
	"math"
	"testing"
)

// stubParty is a minimal in-package participant for contract tests. It
// carries every capability the contracts touch; the reference agent in
// internal/agent is the production counterpart.
type stubParty struct {
	id            string
	cash          float64
	allocatedCash float64

	goods          map[string]float64
	allocatedGoods map[string]float64

	labour          float64
	allocatedLabour float64
	employment      *LabourContract

	accounts map[string]*StockAccount
}

func newStubParty(id string, cash float64) *stubParty {
	return &stubParty{
		id:             id,
		cash:           cash,
		goods:          make(map[string]float64),
		allocatedGoods: make(map[string]float64),
		accounts:       make(map[string]*StockAccount),
	}
}

func (p *stubParty) ID() string { return p.id }

func (p *stubParty) Credit(amount float64) (float64, error) {
	if p.cash < amount-1e-12 {
		return 0, ErrInsufficientFunds
	}
	if amount > p.cash {
		amount = p.cash
	}
	p.cash -= amount
	return amount, nil
}

func (p *stubParty) Debit(amount float64) { p.cash += amount }

func (p *stubParty) AllocateCash(amount float64) float64 {
	free := p.cash - p.allocatedCash
	if amount > free {
		amount = free
	}
	p.allocatedCash += amount
	return amount
}

func (p *stubParty) DisallocateCash(amount float64) float64 {
	if amount > p.allocatedCash {
		amount = p.allocatedCash
	}
	p.allocatedCash -= amount
	return amount
}

func (p *stubParty) UnallocatedCash() float64      { return p.cash - p.allocatedCash }
func (p *stubParty) CashFlowInjection(amt float64) { p.cash += amt }
func (p *stubParty) CashReserveValue() float64     { return p.cash }

func (p *stubParty) GoodsOwned(g string) float64   { return p.goods[g] }
func (p *stubParty) AddGoods(g string, a float64)  { p.goods[g] += a }
func (p *stubParty) RemoveGoods(g string, a float64) float64 {
	if a > p.goods[g] {
		a = p.goods[g]
	}
	p.goods[g] -= a
	return a
}
func (p *stubParty) AllocateGoods(g string, a float64) float64 {
	p.allocatedGoods[g] += a
	return a
}
func (p *stubParty) DisallocateGoods(g string, a float64) float64 {
	if a > p.allocatedGoods[g] {
		a = p.allocatedGoods[g]
	}
	p.allocatedGoods[g] -= a
	return a
}
func (p *stubParty) GoodsSellingPrice(g string) float64 { return 0 }

func (p *stubParty) LabourOwned() float64 { return p.labour }
func (p *stubParty) AllocateLabour(a float64) float64 {
	p.allocatedLabour += a
	return a
}
func (p *stubParty) DisallocateLabour(a float64) float64 {
	if a > p.allocatedLabour {
		a = p.allocatedLabour
	}
	p.allocatedLabour -= a
	return a
}
func (p *stubParty) RemoveLabour(a float64) float64 {
	if a > p.labour {
		a = p.labour
	}
	p.labour -= a
	return a
}
func (p *stubParty) AddLabour(a float64) { p.labour += a }

func (p *stubParty) StartEmployment(c *LabourContract) error {
	if p.employment != nil {
		return ErrDoubleEmployment
	}
	p.employment = c
	return nil
}

func (p *stubParty) EndEmployment(c *LabourContract) {
	if p.employment == c {
		p.employment = nil
	}
}

func (p *stubParty) StockAccount(ticker string) (*StockAccount, bool) {
	acc, ok := p.accounts[ticker]
	return acc, ok
}

func (p *stubParty) OpenStockAccount(ticker string, shares float64) *StockAccount {
	if acc, ok := p.accounts[ticker]; ok {
		return acc
	}
	acc := &StockAccount{Ticker: ticker, HolderID: p.id, Quantity: shares}
	p.accounts[ticker] = acc
	return acc
}

func (p *stubParty) SharesOwnedIn(ticker string) float64 {
	if acc, ok := p.accounts[ticker]; ok {
		return acc.Quantity
	}
	return 0
}

func TestNewLoan_TransfersPrincipal(t *testing.T) {
	lender := newStubParty("bank", 100)
	borrower := newStubParty("firm", 0)

	loan, err := NewLoan(borrower, lender, 40, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.LoanID == "" {
		t.Error("expected a loan id to be assigned")
	}
	if loan.Principal != 40 {
		t.Errorf("Principal = %v, want 40", loan.Principal)
	}
	if loan.BorrowerID != "firm" || loan.LenderID != "bank" {
		t.Errorf("parties = %s/%s, want firm/bank", loan.BorrowerID, loan.LenderID)
	}
	if lender.cash != 60 {
		t.Errorf("lender cash = %v, want 60", lender.cash)
	}
	if borrower.cash != 40 {
		t.Errorf("borrower cash = %v, want 40", borrower.cash)
	}
}

func TestNewLoan_InsufficientFunds_NothingMoves(t *testing.T) {
	lender := newStubParty("bank", 100)
	borrower := newStubParty("firm", 0)

	_, err := NewLoan(borrower, lender, 150, 0.05)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if lender.cash != 100 || borrower.cash != 0 {
		t.Errorf("balances moved on failed loan: lender=%v borrower=%v", lender.cash, borrower.cash)
	}
}

func TestExtendLoan_GrowsPrincipal(t *testing.T) {
	lender := newStubParty("bank", 100)
	borrower := newStubParty("firm", 0)

	loan, err := NewLoan(borrower, lender, 40, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := loan.ExtendLoan(30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loan.Principal != 70 {
		t.Errorf("Principal = %v, want 70", loan.Principal)
	}
	if lender.cash != 30 {
		t.Errorf("lender cash = %v, want 30", lender.cash)
	}
	if borrower.cash != 70 {
		t.Errorf("borrower cash = %v, want 70", borrower.cash)
	}
}

func TestNewLabourContract_StartsEmployment(t *testing.T) {
	employer := newStubParty("firm", 100)
	worker := newStubParty("worker", 0)
	worker.labour = 10

	c, err := NewLabourContract(employer, worker, 5, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if employer.cash != 90 {
		t.Errorf("employer cash = %v, want 90", employer.cash)
	}
	if worker.cash != 10 {
		t.Errorf("worker cash = %v, want 10", worker.cash)
	}
	if worker.labour != 5 {
		t.Errorf("worker labour = %v, want 5", worker.labour)
	}
	if employer.labour != 5 {
		t.Errorf("employer labour = %v, want 5", employer.labour)
	}
	if worker.employment != c {
		t.Error("worker should be bound to the contract")
	}

	c.End()
	if worker.employment != nil {
		t.Error("worker should be free after End")
	}
}

func TestNewLabourContract_DoubleEmployment(t *testing.T) {
	first := newStubParty("firm-a", 100)
	second := newStubParty("firm-b", 100)
	worker := newStubParty("worker", 0)
	worker.labour = 10

	if _, err := NewLabourContract(first, worker, 2, 1, 1); err != nil {
		t.Fatalf("first contract failed: %v", err)
	}
	_, err := NewLabourContract(second, worker, 2, 1, 1)
	if !errors.Is(err, ErrDoubleEmployment) {
		t.Fatalf("expected ErrDoubleEmployment, got %v", err)
	}
	if second.cash != 100 {
		t.Errorf("second employer cash = %v, want 100", second.cash)
	}
}

func TestNewLabourContract_InsufficientFunds_RollsBackEmployment(t *testing.T) {
	employer := newStubParty("firm", 5)
	worker := newStubParty("worker", 0)
	worker.labour = 10

	_, err := NewLabourContract(employer, worker, 5, 2, 1)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if worker.employment != nil {
		t.Error("failed contract should not leave the worker employed")
	}
	if worker.labour != 10 {
		t.Errorf("worker labour = %v, want 10", worker.labour)
	}
}

func TestSettleGoodsForCash(t *testing.T) {
	buyer := newStubParty("buyer", 100)
	seller := newStubParty("seller", 0)
	seller.goods["bread"] = 10
	seller.AllocateGoods("bread", 6)

	trade, err := SettleGoodsForCash(buyer, seller, "bread", 6, 4.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Volume != 6 || trade.Price != 4.5 {
		t.Errorf("trade = %v@%v, want 6@4.5", trade.Volume, trade.Price)
	}
	if math.Abs(buyer.cash-73) > 1e-9 {
		t.Errorf("buyer cash = %v, want 73", buyer.cash)
	}
	if math.Abs(seller.cash-27) > 1e-9 {
		t.Errorf("seller cash = %v, want 27", seller.cash)
	}
	if buyer.goods["bread"] != 6 {
		t.Errorf("buyer goods = %v, want 6", buyer.goods["bread"])
	}
	if seller.goods["bread"] != 4 {
		t.Errorf("seller goods = %v, want 4", seller.goods["bread"])
	}
	if seller.allocatedGoods["bread"] != 0 {
		t.Errorf("seller allocated goods = %v, want 0", seller.allocatedGoods["bread"])
	}
}

func TestSettleGoodsForCash_InsufficientFunds_NothingMoves(t *testing.T) {
	buyer := newStubParty("buyer", 10)
	seller := newStubParty("seller", 0)
	seller.goods["bread"] = 10
	seller.AllocateGoods("bread", 6)

	_, err := SettleGoodsForCash(buyer, seller, "bread", 6, 4.5)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if buyer.cash != 10 || seller.cash != 0 {
		t.Errorf("cash moved on failed settlement: buyer=%v seller=%v", buyer.cash, seller.cash)
	}
	if seller.goods["bread"] != 10 {
		t.Errorf("goods moved on failed settlement: %v", seller.goods["bread"])
	}
}

func TestStockAccount_SetQuantity_ClampsResidue(t *testing.T) {
	acc := &StockAccount{Ticker: "acme", HolderID: "h", Quantity: 1}
	acc.SetQuantity(-1e-12)
	if acc.Quantity != 0 {
		t.Errorf("Quantity = %v, want 0", acc.Quantity)
	}
	acc.SetQuantity(-1)
	if acc.Quantity != -1 {
		t.Errorf("Quantity = %v, want -1 (real negatives pass through)", acc.Quantity)
	}
}
