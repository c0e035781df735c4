package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Service exposes account operations backed by the ledger store.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds an account service instance.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Open registers the account if it does not exist yet. Every opened account
// raises the circulation cap by ledger.CoinsPerUser.
func (s *Service) Open(ctx context.Context, id string) (ledger.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	acc, err := s.store.EnsureAccount(ctx, id)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("open account: %w", err)
	}
	s.logger.Info("account opened", "account_id", id)
	return acc, nil
}

// Balance encapsulates available funds for an account.
type Balance struct {
	AccountID string
	Amount    currency.Amount
	AsOf      time.Time
}

// Balance returns the current balance of the account.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	amount, err := s.store.Balance(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: id, Amount: amount, AsOf: s.now()}, nil
}

// History lists the account's transaction records, newest first.
func (s *Service) History(ctx context.Context, id string, limit int) ([]ledger.Transaction, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	if _, err := s.store.Balance(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Transactions(ctx, id, limit)
}

// RestrictInput describes a new restriction.
type RestrictInput struct {
	AccountID string
	Kind      string
	Reason    string
	Duration  time.Duration
}

// Restrict stores a restriction. A zero Duration never expires.
func (s *Service) Restrict(ctx context.Context, in RestrictInput) (ledger.Restriction, error) {
	if in.Kind == "" {
		in.Kind = ledger.RestrictionBankingDisabled
	}
	now := s.now()
	r := ledger.Restriction{AccountID: in.AccountID, Kind: in.Kind, Reason: in.Reason, CreatedAt: now}
	if in.Duration > 0 {
		until := now.Add(in.Duration)
		r.ExpiresAt = &until
	}
	if err := s.store.Restrict(ctx, r); err != nil {
		return ledger.Restriction{}, err
	}
	s.logger.Warn("account restricted", "account_id", r.AccountID, "kind", r.Kind, "reason", r.Reason)
	return r, nil
}
