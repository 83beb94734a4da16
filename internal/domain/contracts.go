package domain

import (
	"math"

	"github.com/google/uuid"
)

// Contracts are created as a result of settlement, never
// speculatively. The principal or volume summed over the contracts
// created by one distribution call must equal the aggregate volume
// that call reports, within floating-point tolerance.

// Loan is a principal-bearing contract between one borrower and one
// lender. Principal moves at creation and on every extension.
type Loan struct {
	LoanID       string
	BorrowerID   string
	LenderID     string
	Principal    float64
	InterestRate float64

	borrower Borrower
	lender   Lender
}

// NewLoan transfers principal from lender to borrower and returns the
// resulting contract. It fails with ErrInsufficientFunds when the
// lender cannot cover the principal, in which case no cash moves.
func NewLoan(borrower Borrower, lender Lender, principal, interestRate float64) (*Loan, error) {
	actual, err := lender.Credit(principal)
	if err != nil {
		return nil, err
	}
	borrower.Debit(actual)
	return &Loan{
		LoanID:       uuid.New().String(),
		BorrowerID:   borrower.ID(),
		LenderID:     lender.ID(),
		Principal:    actual,
		InterestRate: interestRate,
		borrower:     borrower,
		lender:       lender,
	}, nil
}

// ExtendLoan moves amount of additional principal from the lender to
// the borrower and grows the contract by the sum actually moved.
func (l *Loan) ExtendLoan(amount float64) error {
	actual, err := l.lender.Credit(amount)
	if err != nil {
		return err
	}
	l.borrower.Debit(actual)
	l.Principal += actual
	return nil
}

// LoanFactory produces a principal-bearing loan contract. The loan
// distribution algorithms are constructed with one; tests substitute
// their own to observe contract creation.
type LoanFactory func(borrower Borrower, lender Lender, principal, interestRate float64) (*Loan, error)

// LabourContract binds one employee to one employer for a quantity of
// labour at a wage, for a number of cycles.
type LabourContract struct {
	ContractID string
	EmployerID string
	EmployeeID string
	Quantity   float64
	Wage       float64
	Maturity   int

	employer Employer
	employee Employee
}

// NewLabourContract starts an employment: the wage bill moves from
// employer to employee and the labour quantity transfers. It fails
// with ErrDoubleEmployment if the employee is already under contract
// and with ErrInsufficientFunds if the employer cannot pay; neither
// failure leaves any transfer behind.
func NewLabourContract(employer Employer, employee Employee, quantity, wage float64, maturity int) (*LabourContract, error) {
	c := &LabourContract{
		ContractID: uuid.New().String(),
		EmployerID: employer.ID(),
		EmployeeID: employee.ID(),
		Quantity:   quantity,
		Wage:       wage,
		Maturity:   maturity,
		employer:   employer,
		employee:   employee,
	}
	if err := employee.StartEmployment(c); err != nil {
		return nil, err
	}
	bill, err := employer.Credit(wage * quantity)
	if err != nil {
		employee.EndEmployment(c)
		return nil, err
	}
	employee.Debit(bill)
	employee.RemoveLabour(quantity)
	employer.AddLabour(quantity)
	return c, nil
}

// End terminates the employment. The labour quantity is not returned;
// it was consumed by the employer over the contract's life.
func (c *LabourContract) End() {
	c.employee.EndEmployment(c)
}

// GoodsTrade records one completed goods-for-cash transaction.
type GoodsTrade struct {
	TradeID   string
	GoodsType string
	BuyerID   string
	SellerID  string
	Volume    float64
	Price     float64
}

// SettleGoodsForCash moves cash from buyer to seller and goods from
// seller to buyer. The caller releases the buyer's cash reservation
// first; the seller delivers out of previously allocated inventory. A
// buyer who cannot pay causes ErrInsufficientFunds with nothing
// moved.
func SettleGoodsForCash(buyer GoodsBuyer, seller GoodsSeller, goodsType string, volume, price float64) (*GoodsTrade, error) {
	paid, err := buyer.Credit(volume * price)
	if err != nil {
		return nil, err
	}
	seller.Debit(paid)
	seller.DisallocateGoods(goodsType, volume)
	seller.RemoveGoods(goodsType, volume)
	buyer.AddGoods(goodsType, volume)
	return &GoodsTrade{
		TradeID:   uuid.New().String(),
		GoodsType: goodsType,
		BuyerID:   buyer.ID(),
		SellerID:  seller.ID(),
		Volume:    volume,
		Price:     price,
	}, nil
}

// StockAccount is one holder's share position in one ticker.
type StockAccount struct {
	Ticker   string
	HolderID string
	Quantity float64
}

// SetQuantity replaces the position, clamping tiny negative residue
// from floating-point arithmetic to zero.
func (a *StockAccount) SetQuantity(q float64) {
	if q < 0 && math.Abs(q) < 1e-9 {
		q = 0
	}
	a.Quantity = q
}
