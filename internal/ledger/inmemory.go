package ledger

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ids"
)

type memState struct {
	accounts     map[string]Account
	transactions []Transaction
	loans        map[string]Loan
	loanPayments []LoanPayment
	coupons      map[string]Coupon
	products     map[string]Product
	purchases    []Purchase
	restrictions []Restriction
	circulation  int64
	changes      []CirculationChange
}

func (s *memState) clone() *memState {
	return &memState{
		accounts:     maps.Clone(s.accounts),
		transactions: slices.Clone(s.transactions),
		loans:        maps.Clone(s.loans),
		loanPayments: slices.Clone(s.loanPayments),
		coupons:      maps.Clone(s.coupons),
		products:     maps.Clone(s.products),
		purchases:    slices.Clone(s.purchases),
		restrictions: slices.Clone(s.restrictions),
		circulation:  s.circulation,
		changes:      slices.Clone(s.changes),
	}
}

type inMemoryStore struct {
	mu        sync.Mutex
	state     *memState
	baseCoins int64
	faults    map[string]error
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development. Atomic units run against a copy of the state that
// replaces the live one only when the unit succeeds.
func NewInMemory(baseCoins int64) Store {
	return &inMemoryStore{
		state: &memState{
			accounts: make(map[string]Account),
			loans:    make(map[string]Loan),
			coupons:  make(map[string]Coupon),
			products: make(map[string]Product),
		},
		baseCoins: baseCoins,
		faults:    make(map[string]error),
	}
}

func (s *inMemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memTx{store: s, st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, id string) (Account, error) {
	if strings.TrimSpace(id) == "" {
		return Account{}, ErrAccountNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.state.accounts[id]; ok {
		return acc, nil
	}
	acc := Account{ID: id, CreatedAt: time.Now().UTC()}
	s.state.accounts[id] = acc
	return acc, nil
}

func (s *inMemoryStore) Balance(_ context.Context, id string) (currency.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.state.accounts[id]
	if !ok {
		return currency.Zero, ErrAccountNotFound
	}
	return acc.Balance, nil
}

func (s *inMemoryStore) Transactions(_ context.Context, accountID string, limit int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Transaction
	for i := len(s.state.transactions) - 1; i >= 0; i-- {
		rec := s.state.transactions[i]
		if rec.From == User(accountID) || rec.To == User(accountID) {
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *inMemoryStore) Loans(_ context.Context, borrower string) ([]Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Loan
	for _, loan := range s.state.loans {
		if loan.Borrower == borrower {
			out = append(out, loan)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *inMemoryStore) OverdueLoans(_ context.Context, now time.Time) ([]Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Loan
	for _, loan := range s.state.loans {
		if loan.Status == LoanStatusActive && loan.DueDate.Before(now) {
			out = append(out, loan)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (s *inMemoryStore) Coupon(_ context.Context, code string) (Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.coupons[strings.ToUpper(code)]
	if !ok {
		return Coupon{}, ErrCouponNotFound
	}
	return c, nil
}

func (s *inMemoryStore) CirculationStatus(_ context.Context) (Circulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.circulationLocked(s.state), nil
}

func (s *inMemoryStore) circulationLocked(st *memState) Circulation {
	return Circulation{Total: st.circulation, BaseCoins: s.baseCoins, Users: int64(len(st.accounts))}
}

func (s *inMemoryStore) Restrict(_ context.Context, r Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.accounts[r.AccountID]; !ok {
		return ErrAccountNotFound
	}
	s.state.restrictions = append(s.state.restrictions, r)
	return nil
}

func (s *inMemoryStore) UpsertProduct(_ context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
	return nil
}

func (s *inMemoryStore) Products(_ context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.state.products))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fault returns the error injected for op, consuming it. Callers hold s.mu.
func (s *inMemoryStore) fault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

type memTx struct {
	store *inMemoryStore
	st    *memState
}

func (t *memTx) Account(_ context.Context, id string) (Account, error) {
	acc, ok := t.st.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (t *memTx) SetBalance(_ context.Context, id string, next, prev currency.Amount) error {
	if err := t.store.fault("SetBalance"); err != nil {
		return err
	}
	acc, ok := t.st.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if acc.Balance != prev {
		return ErrConflict
	}
	acc.Balance = next
	t.st.accounts[id] = acc
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, rec Transaction) (string, error) {
	if err := t.store.fault("AppendTransaction"); err != nil {
		return "", err
	}
	rec.ID = ids.New()
	t.st.transactions = append(t.st.transactions, rec)
	return rec.ID, nil
}

func (t *memTx) Circulation(_ context.Context) (Circulation, error) {
	return t.store.circulationLocked(t.st), nil
}

func (t *memTx) SetCirculation(_ context.Context, next, prev int64) error {
	if err := t.store.fault("SetCirculation"); err != nil {
		return err
	}
	if t.st.circulation != prev {
		return ErrConflict
	}
	t.st.circulation = next
	return nil
}

func (t *memTx) RecordCirculationChange(_ context.Context, change CirculationChange) error {
	t.st.changes = append(t.st.changes, change)
	return nil
}

func (t *memTx) Restricted(_ context.Context, accountID, kind string, at time.Time) (bool, error) {
	for _, r := range t.st.restrictions {
		if r.AccountID == accountID && r.Kind == kind && r.ActiveAt(at) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ActiveLoan(_ context.Context, borrower string) (Loan, error) {
	for _, loan := range t.st.loans {
		if loan.Borrower == borrower && loan.Status == LoanStatusActive {
			return loan, nil
		}
	}
	return Loan{}, ErrLoanNotFound
}

func (t *memTx) Loan(_ context.Context, borrower, loanID string) (Loan, error) {
	loan, ok := t.st.loans[loanID]
	if !ok || loan.Borrower != borrower {
		return Loan{}, ErrLoanNotFound
	}
	return loan, nil
}

func (t *memTx) InsertLoan(_ context.Context, loan Loan) error {
	if err := t.store.fault("InsertLoan"); err != nil {
		return err
	}
	t.st.loans[loan.ID] = loan
	return nil
}

func (t *memTx) UpdateLoan(_ context.Context, next Loan, prevPaid currency.Amount) error {
	if err := t.store.fault("UpdateLoan"); err != nil {
		return err
	}
	cur, ok := t.st.loans[next.ID]
	if !ok {
		return ErrLoanNotFound
	}
	if cur.AmountPaid != prevPaid || cur.Status != LoanStatusActive {
		return ErrConflict
	}
	t.st.loans[next.ID] = next
	return nil
}

func (t *memTx) AppendLoanPayment(_ context.Context, payment LoanPayment) error {
	t.st.loanPayments = append(t.st.loanPayments, payment)
	return nil
}

func (t *memTx) InsertCoupon(_ context.Context, coupon Coupon) error {
	if _, exists := t.st.coupons[coupon.Code]; exists {
		return ErrDuplicateCoupon
	}
	t.st.coupons[coupon.Code] = coupon
	return nil
}

func (t *memTx) UnredeemedCoupon(_ context.Context, code string) (Coupon, error) {
	c, ok := t.st.coupons[code]
	if !ok || c.IsRedeemed {
		return Coupon{}, ErrCouponNotFound
	}
	return c, nil
}

func (t *memTx) MarkCouponRedeemed(_ context.Context, code, redeemer string, at time.Time) error {
	if err := t.store.fault("MarkCouponRedeemed"); err != nil {
		return err
	}
	c, ok := t.st.coupons[code]
	if !ok || c.IsRedeemed {
		return ErrCouponNotFound
	}
	c.IsRedeemed = true
	c.RedeemedBy = redeemer
	c.RedeemedAt = &at
	t.st.coupons[code] = c
	return nil
}

func (t *memTx) Product(_ context.Context, id string) (Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t *memTx) SetStock(_ context.Context, productID string, next, prev int64) error {
	if err := t.store.fault("SetStock"); err != nil {
		return err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if p.Stock != prev {
		return ErrConflict
	}
	p.Stock = next
	t.st.products[productID] = p
	return nil
}

func (t *memTx) AppendPurchase(_ context.Context, purchase Purchase) error {
	if err := t.store.fault("AppendPurchase"); err != nil {
		return err
	}
	t.st.purchases = append(t.st.purchases, purchase)
	return nil
}
