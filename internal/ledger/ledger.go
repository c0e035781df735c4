package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/friendcoin/friendcoin/internal/currency"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = currency.ErrInsufficientFunds

	// ErrInvalidAmount rejects zero amounts and non-positive quantities.
	ErrInvalidAmount = errors.New("amount must be positive")

	ErrAccountNotFound          = errors.New("account not found")
	ErrRecipientNotFound        = errors.New("recipient not found")
	ErrSameAccount              = errors.New("sender and recipient are the same account")
	ErrActiveLoanExists         = errors.New("an active loan already exists")
	ErrAccountRestricted        = errors.New("account is restricted")
	ErrCirculationLimitExceeded = errors.New("circulation limit exceeded")
	ErrCirculationNegative      = errors.New("circulation cannot go negative")
	ErrLoanNotFound             = errors.New("loan not found")
	ErrCouponNotFound           = errors.New("coupon not found")
	ErrProductNotFound          = errors.New("product not found")
	ErrInsufficientStock        = errors.New("insufficient stock")

	// ErrConflict is returned by a conditional write whose expected previous
	// value no longer matches the stored one.
	ErrConflict = errors.New("concurrent modification")

	// ErrDuplicateCoupon reports a coupon code collision on insert.
	ErrDuplicateCoupon = errors.New("coupon code already exists")
)

// Kind classifies a transaction record.
type Kind string

const (
	KindTransfer        Kind = "transfer"
	KindLoan            Kind = "loan"
	KindLoanPayment     Kind = "loan_payment"
	KindCouponRedeem    Kind = "coupon_redeem"
	KindProductPurchase Kind = "product_purchase"
	KindPayment         Kind = "payment"
	KindStockSale       Kind = "stock_sale"
)

// StatusCompleted is the only status a persisted transaction carries; failed
// operations never write a record.
const StatusCompleted = "completed"

const (
	LoanStatusActive = "active"
	LoanStatusPaid   = "paid"
)

// RestrictionBankingDisabled blocks loans and marketplace purchases.
const RestrictionBankingDisabled = "banking_disabled"

// CoinsPerUser is added to the circulation cap for every opened account.
const CoinsPerUser = 10

// Transaction is the immutable record written once per completed operation.
type Transaction struct {
	ID                string          `json:"id"`
	From              Party           `json:"from"`
	To                Party           `json:"to"`
	Amount            currency.Amount `json:"amount"`
	Tax               currency.Amount `json:"tax"`
	Kind              Kind            `json:"kind"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Account is a user balance holder.
type Account struct {
	ID        string          `json:"id"`
	Balance   currency.Amount `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Restriction limits what an account may do until it expires.
type Restriction struct {
	AccountID string     `json:"account_id"`
	Kind      string     `json:"kind"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ActiveAt reports whether the restriction applies at t.
func (r Restriction) ActiveAt(t time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(t)
}

// Loan is a bank loan. AmountPaid never exceeds Principal.
type Loan struct {
	ID         string          `json:"id"`
	Borrower   string          `json:"borrower"`
	Principal  currency.Amount `json:"principal"`
	AmountPaid currency.Amount `json:"amount_paid"`
	Status     string          `json:"status"`
	DueDate    time.Time       `json:"due_date"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Remaining is the part of the principal still to be repaid.
func (l Loan) Remaining() currency.Amount {
	rest, err := currency.Sub(l.Principal, l.AmountPaid)
	if err != nil {
		return currency.Zero
	}
	return rest
}

// LoanPayment is the sub-record written for each repayment.
type LoanPayment struct {
	ID            string          `json:"id"`
	LoanID        string          `json:"loan_id"`
	Amount        currency.Amount `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Coupon carries value from its creator to whoever redeems it first.
type Coupon struct {
	Code       string          `json:"code"`
	Amount     currency.Amount `json:"amount"`
	CreatedBy  string          `json:"created_by"`
	RedeemedBy string          `json:"redeemed_by,omitempty"`
	IsRedeemed bool            `json:"is_redeemed"`
	CreatedAt  time.Time       `json:"created_at"`
	RedeemedAt *time.Time      `json:"redeemed_at,omitempty"`
}

// UnlimitedStock marks a product whose stock is not tracked.
const UnlimitedStock = -1

// Product is a marketplace listing.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price currency.Amount `json:"price"`
	Stock int64           `json:"stock"`
}

// Tracked reports whether purchases decrement the stock.
func (p Product) Tracked() bool {
	return p.Stock != UnlimitedStock
}

// Purchase records a completed product purchase.
type Purchase struct {
	ID            string          `json:"id"`
	Buyer         string          `json:"buyer"`
	ProductID     string          `json:"product_id"`
	Quantity      int64           `json:"quantity"`
	Total         currency.Amount `json:"total"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Circulation is the global coin counter and its ceiling.
type Circulation struct {
	Total     int64 `json:"total_coins_in_circulation"`
	BaseCoins int64 `json:"total_base_coins"`
	Users     int64 `json:"registered_users"`
}

// Cap is total_base_coins + 10 per registered user.
func (c Circulation) Cap() int64 {
	return c.BaseCoins + CoinsPerUser*c.Users
}

// CirculationChange is the audit row written alongside every adjustment.
type CirculationChange struct {
	Delta     int64     `json:"delta"`
	Total     int64     `json:"total"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Tx is the view of the store inside one atomic unit. Reads lock what they
// return until the unit ends; writes are conditional on the previously read
// value and fail with ErrConflict when it changed underneath.
type Tx interface {
	Account(ctx context.Context, id string) (Account, error)
	SetBalance(ctx context.Context, id string, next, prev currency.Amount) error
	AppendTransaction(ctx context.Context, rec Transaction) (string, error)

	Circulation(ctx context.Context) (Circulation, error)
	SetCirculation(ctx context.Context, next, prev int64) error
	RecordCirculationChange(ctx context.Context, change CirculationChange) error

	Restricted(ctx context.Context, accountID, kind string, at time.Time) (bool, error)

	ActiveLoan(ctx context.Context, borrower string) (Loan, error)
	Loan(ctx context.Context, borrower, loanID string) (Loan, error)
	InsertLoan(ctx context.Context, loan Loan) error
	UpdateLoan(ctx context.Context, next Loan, prevPaid currency.Amount) error
	AppendLoanPayment(ctx context.Context, payment LoanPayment) error

	InsertCoupon(ctx context.Context, coupon Coupon) error
	UnredeemedCoupon(ctx context.Context, code string) (Coupon, error)
	MarkCouponRedeemed(ctx context.Context, code, redeemer string, at time.Time) error

	Product(ctx context.Context, id string) (Product, error)
	SetStock(ctx context.Context, productID string, next, prev int64) error
	AppendPurchase(ctx context.Context, purchase Purchase) error
}

// Store is the persistence collaborator of the engine. Atomic runs fn inside a
// single unit: either everything fn wrote becomes visible or nothing does.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	EnsureAccount(ctx context.Context, id string) (Account, error)
	Balance(ctx context.Context, id string) (currency.Amount, error)
	Transactions(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	Loans(ctx context.Context, borrower string) ([]Loan, error)
	OverdueLoans(ctx context.Context, now time.Time) ([]Loan, error)
	Coupon(ctx context.Context, code string) (Coupon, error)
	CirculationStatus(ctx context.Context) (Circulation, error)
	Restrict(ctx context.Context, r Restriction) error
	UpsertProduct(ctx context.Context, p Product) error
	Products(ctx context.Context) ([]Product, error)
}
