package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ids"
)

const (
	defaultCouponCodeLength = 8
	couponCodeAttempts      = 5
)

// Engine applies balance-changing operations against a Store. Every operation
// validates, loads, checks, computes and persists inside one Store.Atomic unit.
type Engine struct {
	store          Store
	taxRate        decimal.Decimal
	loanTermMonths int
	codeLength     int
	newCode        func(n int) (string, error)
	now            func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithTaxRate overrides the transfer tax rate.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(e *Engine) { e.taxRate = rate }
}

// WithLoanTerm sets the number of months until a new loan is due.
func WithLoanTerm(months int) Option {
	return func(e *Engine) {
		if months > 0 {
			e.loanTermMonths = months
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCouponCodes replaces the coupon code generator.
func WithCouponCodes(gen func(n int) (string, error)) Option {
	return func(e *Engine) { e.newCode = gen }
}

// NewEngine builds an engine over the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		taxRate:        currency.DefaultTaxRate,
		loanTermMonths: 1,
		codeLength:     defaultCouponCodeLength,
		newCode:        ids.CouponCode,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the backing store for read-side queries.
func (e *Engine) Store() Store { return e.store }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.now() }

// TaxRate returns the configured transfer tax rate.
func (e *Engine) TaxRate() decimal.Decimal { return e.taxRate }

// ValidateAmount rejects amounts outside the currency's range with
// currency.ErrFormat and zero amounts with ErrInvalidAmount.
func ValidateAmount(a currency.Amount) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// TransferInput moves Amount from From to To.
type TransferInput struct {
	From   string
	To     string
	Amount currency.Amount
	Notes  string
}

// TransferResult describes a completed transfer.
type TransferResult struct {
	TransactionID    string
	Amount           currency.Amount
	Tax              currency.Amount
	SenderBalance    currency.Amount
	RecipientBalance currency.Amount
	CompletedAt      time.Time
}

// Transfer debits the sender by amount plus tax and credits the recipient by
// amount. The tax is not credited to any account.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return TransferResult{}, err
	}
	if in.From == in.To {
		return TransferResult{}, ErrSameAccount
	}

	tax := currency.Tax(in.Amount, e.taxRate)
	debit, err := currency.Add(in.Amount, tax)
	if err != nil {
		return TransferResult{}, err
	}
	now := e.now()

	var res TransferResult
	err = e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		sender, recipient, err := lockPair(ctx, tx, in.From, in.To)
		if err != nil {
			return err
		}

		senderNext, err := currency.Sub(sender.Balance, debit)
		if err != nil {
			return err
		}
		recipientNext, err := currency.Add(recipient.Balance, in.Amount)
		if err != nil {
			return err
		}

		if err := tx.SetBalance(ctx, sender.ID, senderNext, sender.Balance); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, recipient.ID, recipientNext, recipient.Balance); err != nil {
			return err
		}

		txID, err := tx.AppendTransaction(ctx, Transaction{
			From:      User(sender.ID),
			To:        User(recipient.ID),
			Amount:    in.Amount,
			Tax:       tax,
			Kind:      KindTransfer,
			Status:    StatusCompleted,
			Notes:     in.Notes,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		res = TransferResult{
			TransactionID:    txID,
			Amount:           in.Amount,
			Tax:              tax,
			SenderBalance:    senderNext,
			RecipientBalance: recipientNext,
			CompletedAt:      now,
		}
		return nil
	})
	return res, err
}

// lockPair loads both transfer parties in id order so that two opposite
// transfers cannot deadlock.
func lockPair(ctx context.Context, tx Tx, from, to string) (Account, Account, error) {
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	accounts := make(map[string]Account, 2)
	for _, id := range []string{first, second} {
		acc, err := tx.Account(ctx, id)
		switch {
		case errors.Is(err, ErrAccountNotFound) && id == to:
			return Account{}, Account{}, ErrRecipientNotFound
		case err != nil:
			return Account{}, Account{}, err
		}
		accounts[id] = acc
	}
	return accounts[from], accounts[to], nil
}

// PayInput is a tax-free merchant payment.
type PayInput struct {
	Payer     string
	Merchant  string
	Amount    currency.Amount
	Reference string
}

// Pay debits the payer and credits the merchant, recording a payment with
// the external reference.
func (e *Engine) Pay(ctx context.Context, in PayInput) (TransferResult, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return TransferResult{}, err
	}
	if in.Payer == in.Merchant {
		return TransferResult{}, ErrSameAccount
	}
	now := e.now()

	var res TransferResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		payer, merchant, err := lockPair(ctx, tx, in.Payer, in.Merchant)
		if err != nil {
			return err
		}
		payerNext, err := currency.Sub(payer.Balance, in.Amount)
		if err != nil {
			return err
		}
		merchantNext, err := currency.Add(merchant.Balance, in.Amount)
		if err != nil {
			return err
		}

		if err := tx.SetBalance(ctx, payer.ID, payerNext, payer.Balance); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, merchant.ID, merchantNext, merchant.Balance); err != nil {
			return err
		}
		txID, err := tx.AppendTransaction(ctx, Transaction{
			From:              User(payer.ID),
			To:                User(merchant.ID),
			Amount:            in.Amount,
			Kind:              KindPayment,
			Status:            StatusCompleted,
			ExternalReference: in.Reference,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}
		res = TransferResult{
			TransactionID:    txID,
			Amount:           in.Amount,
			SenderBalance:    payerNext,
			RecipientBalance: merchantNext,
			CompletedAt:      now,
		}
		return nil
	})
	return res, err
}

// IssueLoan credits the borrower with a new active loan, growing circulation
// by the amount rounded up to whole coins.
func (e *Engine) IssueLoan(ctx context.Context, borrower string, amount currency.Amount) (Loan, error) {
	if err := ValidateAmount(amount); err != nil {
		return Loan{}, err
	}
	now := e.now()

	var loan Loan
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := tx.Account(ctx, borrower)
		if err != nil {
			return err
		}

		if _, err := tx.ActiveLoan(ctx, borrower); err == nil {
			return ErrActiveLoanExists
		} else if !errors.Is(err, ErrLoanNotFound) {
			return err
		}

		restricted, err := tx.Restricted(ctx, borrower, RestrictionBankingDisabled, now)
		if err != nil {
			return err
		}
		if restricted {
			return ErrAccountRestricted
		}

		if _, err := adjustCirculation(ctx, tx, amount.CeilCoins(), "loan issued to "+borrower, now); err != nil {
			return err
		}

		loan = Loan{
			ID:        ids.New(),
			Borrower:  borrower,
			Principal: amount,
			Status:    LoanStatusActive,
			DueDate:   now.AddDate(0, e.loanTermMonths, 0),
			CreatedAt: now,
		}
		if err := tx.InsertLoan(ctx, loan); err != nil {
			return err
		}

		balance, err := currency.Add(acc.Balance, amount)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, acc.ID, balance, acc.Balance); err != nil {
			return err
		}
		_, err = tx.AppendTransaction(ctx, Transaction{
			From:              System(SystemBank),
			To:                User(borrower),
			Amount:            amount,
			Kind:              KindLoan,
			Status:            StatusCompleted,
			ExternalReference: loan.ID,
			CreatedAt:         now,
		})
		return err
	})
	if err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// RepaymentResult describes one loan repayment.
type RepaymentResult struct {
	Loan          Loan
	Paid          currency.Amount
	Balance       currency.Amount
	TransactionID string
}

// RepayLoan pays down an active loan. A payment larger than the remaining
// principal is capped to it; the excess is neither debited nor credited back.
func (e *Engine) RepayLoan(ctx context.Context, borrower, loanID string, amount currency.Amount) (RepaymentResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return RepaymentResult{}, err
	}
	now := e.now()

	var res RepaymentResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		loan, err := tx.Loan(ctx, borrower, loanID)
		if err != nil {
			return err
		}
		if loan.Status != LoanStatusActive {
			return ErrLoanNotFound
		}

		acc, err := tx.Account(ctx, borrower)
		if err != nil {
			return err
		}
		if acc.Balance.Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}

		payment := currency.Min(amount, loan.Remaining())
		balance, err := currency.Sub(acc.Balance, payment)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, acc.ID, balance, acc.Balance); err != nil {
			return err
		}

		next := loan
		if next.AmountPaid, err = currency.Add(loan.AmountPaid, payment); err != nil {
			return err
		}
		if next.AmountPaid.Cmp(next.Principal) == 0 {
			next.Status = LoanStatusPaid
			if _, err := adjustCirculation(ctx, tx, -loan.Principal.CeilCoins(), "loan "+loan.ID+" repaid", now); err != nil {
				return err
			}
		}
		if err := tx.UpdateLoan(ctx, next, loan.AmountPaid); err != nil {
			return err
		}

		txID, err := tx.AppendTransaction(ctx, Transaction{
			From:              User(borrower),
			To:                System(SystemBank),
			Amount:            payment,
			Kind:              KindLoanPayment,
			Status:            StatusCompleted,
			ExternalReference: loan.ID,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendLoanPayment(ctx, LoanPayment{
			ID:            ids.New(),
			LoanID:        loan.ID,
			Amount:        payment,
			TransactionID: txID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		res = RepaymentResult{Loan: next, Paid: payment, Balance: balance, TransactionID: txID}
		return nil
	})
	return res, err
}

// CreateCoupon debits the creator and stores an unredeemed coupon under a
// fresh random code.
func (e *Engine) CreateCoupon(ctx context.Context, creator string, amount currency.Amount) (Coupon, error) {
	if err := ValidateAmount(amount); err != nil {
		return Coupon{}, err
	}
	now := e.now()

	var coupon Coupon
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := tx.Account(ctx, creator)
		if err != nil {
			return err
		}
		balance, err := currency.Sub(acc.Balance, amount)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, acc.ID, balance, acc.Balance); err != nil {
			return err
		}

		for attempt := 0; attempt < couponCodeAttempts; attempt++ {
			code, err := e.newCode(e.codeLength)
			if err != nil {
				return fmt.Errorf("generate coupon code: %w", err)
			}
			coupon = Coupon{Code: strings.ToUpper(code), Amount: amount, CreatedBy: creator, CreatedAt: now}
			err = tx.InsertCoupon(ctx, coupon)
			if errors.Is(err, ErrDuplicateCoupon) {
				continue
			}
			return err
		}
		return fmt.Errorf("generate coupon code: %w", ErrDuplicateCoupon)
	})
	if err != nil {
		return Coupon{}, err
	}
	return coupon, nil
}

// RedemptionResult describes a redeemed coupon.
type RedemptionResult struct {
	Coupon        Coupon
	Balance       currency.Amount
	TransactionID string
}

// RedeemCoupon credits the redeemer with the coupon amount. The coupon flips
// to redeemed through a conditional write, so of two concurrent redeemers
// exactly one succeeds and the other gets ErrCouponNotFound.
func (e *Engine) RedeemCoupon(ctx context.Context, redeemer, code string) (RedemptionResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return RedemptionResult{}, ErrCouponNotFound
	}
	now := e.now()

	var res RedemptionResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := tx.Account(ctx, redeemer)
		if err != nil {
			return err
		}
		coupon, err := tx.UnredeemedCoupon(ctx, code)
		if err != nil {
			return err
		}
		if err := tx.MarkCouponRedeemed(ctx, code, redeemer, now); err != nil {
			return err
		}

		balance, err := currency.Add(acc.Balance, coupon.Amount)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, acc.ID, balance, acc.Balance); err != nil {
			return err
		}
		txID, err := tx.AppendTransaction(ctx, Transaction{
			From:              User(coupon.CreatedBy),
			To:                User(redeemer),
			Amount:            coupon.Amount,
			Kind:              KindCouponRedeem,
			Status:            StatusCompleted,
			ExternalReference: coupon.Code,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}

		coupon.IsRedeemed = true
		coupon.RedeemedBy = redeemer
		coupon.RedeemedAt = &now
		res = RedemptionResult{Coupon: coupon, Balance: balance, TransactionID: txID}
		return nil
	})
	return res, err
}

// PurchaseResult describes a completed purchase.
type PurchaseResult struct {
	Purchase Purchase
	Balance  currency.Amount
	Stock    int64
}

// Purchase buys quantity units of a product for the buyer.
func (e *Engine) Purchase(ctx context.Context, buyer, productID string, quantity int64) (PurchaseResult, error) {
	if quantity <= 0 {
		return PurchaseResult{}, ErrInvalidAmount
	}
	now := e.now()

	var res PurchaseResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		acc, err := tx.Account(ctx, buyer)
		if err != nil {
			return err
		}
		restricted, err := tx.Restricted(ctx, buyer, RestrictionBankingDisabled, now)
		if err != nil {
			return err
		}
		if restricted {
			return ErrAccountRestricted
		}

		product, err := tx.Product(ctx, productID)
		if err != nil {
			return err
		}
		if product.Tracked() && product.Stock < quantity {
			return ErrInsufficientStock
		}

		total, err := currency.Mul(product.Price, quantity)
		if err != nil {
			return err
		}
		balance, err := currency.Sub(acc.Balance, total)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, acc.ID, balance, acc.Balance); err != nil {
			return err
		}

		stock := product.Stock
		if product.Tracked() {
			stock = product.Stock - quantity
			if err := tx.SetStock(ctx, product.ID, stock, product.Stock); err != nil {
				return err
			}
		}

		txID, err := tx.AppendTransaction(ctx, Transaction{
			From:              User(buyer),
			To:                System(SystemMarket),
			Amount:            total,
			Kind:              KindProductPurchase,
			Status:            StatusCompleted,
			ExternalReference: product.ID,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}

		purchase := Purchase{
			ID:            ids.New(),
			Buyer:         buyer,
			ProductID:     product.ID,
			Quantity:      quantity,
			Total:         total,
			TransactionID: txID,
			CreatedAt:     now,
		}
		if err := tx.AppendPurchase(ctx, purchase); err != nil {
			return err
		}
		res = PurchaseResult{Purchase: purchase, Balance: balance, Stock: stock}
		return nil
	})
	return res, err
}

// AdjustCirculation moves the circulation counter by delta coins on its own.
// Loan issuance and repayment run the same step inside their own unit.
func (e *Engine) AdjustCirculation(ctx context.Context, delta int64, reason string) (Circulation, error) {
	now := e.now()
	var circ Circulation
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		circ, err = adjustCirculation(ctx, tx, delta, reason, now)
		return err
	})
	return circ, err
}

func adjustCirculation(ctx context.Context, tx Tx, delta int64, reason string, now time.Time) (Circulation, error) {
	circ, err := tx.Circulation(ctx)
	if err != nil {
		return Circulation{}, err
	}
	next := circ.Total + delta
	if next > circ.Cap() {
		return Circulation{}, ErrCirculationLimitExceeded
	}
	if next < 0 {
		return Circulation{}, ErrCirculationNegative
	}
	if err := tx.SetCirculation(ctx, next, circ.Total); err != nil {
		return Circulation{}, err
	}
	if err := tx.RecordCirculationChange(ctx, CirculationChange{Delta: delta, Total: next, Reason: reason, CreatedAt: now}); err != nil {
		return Circulation{}, err
	}
	circ.Total = next
	return circ, nil
}
