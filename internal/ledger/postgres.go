package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ids"
)

//go:embed schema.sql
var schema string

// PostgresStore persists ledger state in PostgreSQL. Rows read inside Atomic
// are locked with SELECT ... FOR UPDATE and every write is conditional on the
// value that was read.
type PostgresStore struct {
	db        *pgxpool.Pool
	baseCoins int64
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool, baseCoins int64) *PostgresStore {
	return &PostgresStore{db: db, baseCoins: baseCoins}
}

// Migrate creates the ledger tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx, baseCoins: s.baseCoins}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// EnsureAccount guarantees an account exists for the provided id.
func (s *PostgresStore) EnsureAccount(ctx context.Context, id string) (Account, error) {
	if strings.TrimSpace(id) == "" {
		return Account{}, ErrAccountNotFound
	}
	if _, err := s.db.Exec(ctx, `INSERT INTO accounts (id, created_at) VALUES ($1, now())
        ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return Account{}, err
	}
	return scanAccount(s.db.QueryRow(ctx, `SELECT id, coins, fraction, created_at FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) Balance(ctx context.Context, id string) (currency.Amount, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx, `SELECT id, coins, fraction, created_at FROM accounts WHERE id = $1`, id))
	if err != nil {
		return currency.Zero, err
	}
	return acc.Balance, nil
}

const transactionColumns = `id, from_party, to_party, amount_coins, amount_fraction, tax_coins, tax_fraction,
        kind, status, external_reference, notes, created_at`

func (s *PostgresStore) Transactions(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	party := User(accountID).String()
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE from_party = $1 OR to_party = $1
        ORDER BY id DESC LIMIT $2`, party, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const loanColumns = `id, borrower, principal_coins, principal_frac, paid_coins, paid_frac, status, due_date, created_at`

func (s *PostgresStore) Loans(ctx context.Context, borrower string) ([]Loan, error) {
	return queryLoans(ctx, s.db, `SELECT `+loanColumns+` FROM loans WHERE borrower = $1 ORDER BY created_at DESC`, borrower)
}

func (s *PostgresStore) OverdueLoans(ctx context.Context, now time.Time) ([]Loan, error) {
	return queryLoans(ctx, s.db, `SELECT `+loanColumns+` FROM loans WHERE status = $1 AND due_date < $2 ORDER BY due_date`, LoanStatusActive, now)
}

func queryLoans(ctx context.Context, db *pgxpool.Pool, query string, args ...any) ([]Loan, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loan)
	}
	return out, rows.Err()
}

const couponColumns = `code, coins, fraction, created_by, COALESCE(redeemed_by, ''), is_redeemed, created_at, redeemed_at`

func (s *PostgresStore) Coupon(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(s.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, strings.ToUpper(code)))
}

func (s *PostgresStore) CirculationStatus(ctx context.Context) (Circulation, error) {
	c := Circulation{BaseCoins: s.baseCoins}
	err := s.db.QueryRow(ctx, `SELECT total, (SELECT count(*) FROM accounts) FROM circulation`).Scan(&c.Total, &c.Users)
	return c, err
}

func (s *PostgresStore) Restrict(ctx context.Context, r Restriction) error {
	tag, err := s.db.Exec(ctx, `INSERT INTO restrictions (account_id, kind, reason, expires_at, created_at)
        SELECT id, $2, $3, $4, $5 FROM accounts WHERE id = $1`,
		r.AccountID, r.Kind, r.Reason, r.ExpiresAt, r.CreatedAt)
	return conditional(tag.RowsAffected(), err, ErrAccountNotFound)
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p Product) error {
	_, err := s.db.Exec(ctx, `INSERT INTO products (id, name, coins, fraction, stock) VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET name = excluded.name, coins = excluded.coins,
        fraction = excluded.fraction, stock = excluded.stock`,
		p.ID, p.Name, p.Price.Coins, p.Price.Fraction, p.Stock)
	return err
}

func (s *PostgresStore) Products(ctx context.Context) ([]Product, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, coins, fraction, stock FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price.Coins, &p.Price.Fraction, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type pgTx struct {
	tx        pgx.Tx
	baseCoins int64
}

func (t *pgTx) Account(ctx context.Context, id string) (Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, `SELECT id, coins, fraction, created_at FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) SetBalance(ctx context.Context, id string, next, prev currency.Amount) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET coins = $2, fraction = $3
        WHERE id = $1 AND coins = $4 AND fraction = $5`,
		id, next.Coins, next.Fraction, prev.Coins, prev.Fraction)
	return conditional(tag.RowsAffected(), err, ErrConflict)
}

func (t *pgTx) AppendTransaction(ctx context.Context, rec Transaction) (string, error) {
	rec.ID = ids.New()
	_, err := t.tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.From.String(), rec.To.String(), rec.Amount.Coins, rec.Amount.Fraction,
		rec.Tax.Coins, rec.Tax.Fraction, string(rec.Kind), rec.Status, rec.ExternalReference, rec.Notes, rec.CreatedAt)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (t *pgTx) Circulation(ctx context.Context) (Circulation, error) {
	c := Circulation{BaseCoins: t.baseCoins}
	if err := t.tx.QueryRow(ctx, `SELECT total FROM circulation FOR UPDATE`).Scan(&c.Total); err != nil {
		return Circulation{}, err
	}
	if err := t.tx.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&c.Users); err != nil {
		return Circulation{}, err
	}
	return c, nil
}

func (t *pgTx) SetCirculation(ctx context.Context, next, prev int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE circulation SET total = $1 WHERE total = $2`, next, prev)
	return conditional(tag.RowsAffected(), err, ErrConflict)
}

func (t *pgTx) RecordCirculationChange(ctx context.Context, change CirculationChange) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO circulation_changes (delta, total, reason, created_at) VALUES ($1, $2, $3, $4)`,
		change.Delta, change.Total, change.Reason, change.CreatedAt)
	return err
}

func (t *pgTx) Restricted(ctx context.Context, accountID, kind string, at time.Time) (bool, error) {
	var restricted bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (
        SELECT 1 FROM restrictions
        WHERE account_id = $1 AND kind = $2 AND (expires_at IS NULL OR expires_at > $3))`,
		accountID, kind, at).Scan(&restricted)
	return restricted, err
}

func (t *pgTx) ActiveLoan(ctx context.Context, borrower string) (Loan, error) {
	return scanLoan(t.tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE borrower = $1 AND status = $2 LIMIT 1 FOR UPDATE`, borrower, LoanStatusActive))
}

func (t *pgTx) Loan(ctx context.Context, borrower, loanID string) (Loan, error) {
	return scanLoan(t.tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE id = $1 AND borrower = $2 FOR UPDATE`, loanID, borrower))
}

func (t *pgTx) InsertLoan(ctx context.Context, loan Loan) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO loans (`+loanColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		loan.ID, loan.Borrower, loan.Principal.Coins, loan.Principal.Fraction,
		loan.AmountPaid.Coins, loan.AmountPaid.Fraction, loan.Status, loan.DueDate, loan.CreatedAt)
	return err
}

func (t *pgTx) UpdateLoan(ctx context.Context, next Loan, prevPaid currency.Amount) error {
	tag, err := t.tx.Exec(ctx, `UPDATE loans SET paid_coins = $2, paid_frac = $3, status = $4
        WHERE id = $1 AND paid_coins = $5 AND paid_frac = $6 AND status = $7`,
		next.ID, next.AmountPaid.Coins, next.AmountPaid.Fraction, next.Status,
		prevPaid.Coins, prevPaid.Fraction, LoanStatusActive)
	return conditional(tag.RowsAffected(), err, ErrConflict)
}

func (t *pgTx) AppendLoanPayment(ctx context.Context, p LoanPayment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO loan_payments (id, loan_id, coins, fraction, transaction_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, p.ID, p.LoanID, p.Amount.Coins, p.Amount.Fraction, p.TransactionID, p.CreatedAt)
	return err
}

func (t *pgTx) InsertCoupon(ctx context.Context, c Coupon) error {
	tag, err := t.tx.Exec(ctx, `INSERT INTO coupons (code, coins, fraction, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (code) DO NOTHING`,
		c.Code, c.Amount.Coins, c.Amount.Fraction, c.CreatedBy, c.CreatedAt)
	return conditional(tag.RowsAffected(), err, ErrDuplicateCoupon)
}

func (t *pgTx) UnredeemedCoupon(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(t.tx.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons
        WHERE code = $1 AND is_redeemed = FALSE FOR UPDATE`, code))
}

func (t *pgTx) MarkCouponRedeemed(ctx context.Context, code, redeemer string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE coupons SET is_redeemed = TRUE, redeemed_by = $2, redeemed_at = $3
        WHERE code = $1 AND is_redeemed = FALSE`, code, redeemer, at)
	return conditional(tag.RowsAffected(), err, ErrCouponNotFound)
}

func (t *pgTx) Product(ctx context.Context, id string) (Product, error) {
	var p Product
	err := t.tx.QueryRow(ctx, `SELECT id, name, coins, fraction, stock FROM products WHERE id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.Price.Coins, &p.Price.Fraction, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (t *pgTx) SetStock(ctx context.Context, productID string, next, prev int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET stock = $2 WHERE id = $1 AND stock = $3`, productID, next, prev)
	return conditional(tag.RowsAffected(), err, ErrConflict)
}

func (t *pgTx) AppendPurchase(ctx context.Context, p Purchase) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchases (id, buyer, product_id, quantity, total_coins, total_fraction, transaction_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Buyer, p.ProductID, p.Quantity, p.Total.Coins, p.Total.Fraction, p.TransactionID, p.CreatedAt)
	return err
}

// conditional turns a write that matched no row into miss.
func conditional(affected int64, err, miss error) error {
	if err != nil {
		return err
	}
	if affected == 0 {
		return miss
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.Balance.Coins, &acc.Balance.Fraction, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		rec      Transaction
		from, to string
		kind     string
	)
	if err := row.Scan(&rec.ID, &from, &to, &rec.Amount.Coins, &rec.Amount.Fraction, &rec.Tax.Coins, &rec.Tax.Fraction,
		&kind, &rec.Status, &rec.ExternalReference, &rec.Notes, &rec.CreatedAt); err != nil {
		return Transaction{}, err
	}
	var err error
	if rec.From, err = ParseParty(from); err != nil {
		return Transaction{}, err
	}
	if rec.To, err = ParseParty(to); err != nil {
		return Transaction{}, err
	}
	rec.Kind = Kind(kind)
	return rec, nil
}

func scanLoan(row pgx.Row) (Loan, error) {
	var loan Loan
	err := row.Scan(&loan.ID, &loan.Borrower, &loan.Principal.Coins, &loan.Principal.Fraction,
		&loan.AmountPaid.Coins, &loan.AmountPaid.Fraction, &loan.Status, &loan.DueDate, &loan.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrLoanNotFound
	}
	return loan, err
}

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.Code, &c.Amount.Coins, &c.Amount.Fraction, &c.CreatedBy, &c.RedeemedBy, &c.IsRedeemed, &c.CreatedAt, &c.RedeemedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrCouponNotFound
	}
	return c, err
}
