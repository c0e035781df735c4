package merchant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/metrics"
	"github.com/friendcoin/friendcoin/internal/notification"
)

// Service runs the merchant checkout flow: a merchant opens a session for an
// amount, a customer pays it once, and the merchant validates the outcome.
type Service struct {
	engine   *ledger.Engine
	sessions SessionStore
	ttl      time.Duration
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService constructs a merchant service.
func NewService(engine *ledger.Engine, sessions SessionStore, ttl time.Duration, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{engine: engine, sessions: sessions, ttl: ttl, notifier: notifier, metrics: m, logger: logger}
}

// CreateSession opens a pending session for the merchant.
func (s *Service) CreateSession(ctx context.Context, merchant string, amount currency.Amount, reference string) (Session, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return Session{}, err
	}
	if _, err := s.engine.Store().Balance(ctx, merchant); err != nil {
		return Session{}, err
	}
	now := s.engine.Now()
	session := Session{
		ID:        uuid.NewString(),
		Merchant:  merchant,
		Amount:    amount,
		Reference: strings.TrimSpace(reference),
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session, s.ttl); err != nil {
		return Session{}, err
	}
	s.logger.Info("payment session created", "session_id", session.ID, "merchant", merchant, "amount", amount.String())
	return session, nil
}

// PaySession pays the session from the payer's balance. Only the first payer
// succeeds.
func (s *Service) PaySession(ctx context.Context, id, payer string) (Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if session.Status == StatusPaid {
		return Session{}, ErrSessionAlreadyPaid
	}

	remaining := session.ExpiresAt.Sub(s.engine.Now())
	if remaining <= 0 {
		return Session{}, ErrSessionNotFound
	}
	claimed, err := s.sessions.Claim(ctx, id, payer, remaining)
	if err != nil {
		return Session{}, err
	}
	if !claimed {
		return Session{}, ErrSessionAlreadyPaid
	}

	res, err := s.engine.Pay(ctx, ledger.PayInput{
		Payer:     payer,
		Merchant:  session.Merchant,
		Amount:    session.Amount,
		Reference: session.Reference,
	})
	s.metrics.ObserveOperation(string(ledger.KindPayment), err)
	if err != nil {
		if relErr := s.sessions.Release(ctx, id); relErr != nil {
			s.logger.Warn("release session claim", "session_id", id, "error", relErr)
		}
		return Session{}, err
	}

	session.Status = StatusPaid
	session.PaidBy = payer
	session.TransactionID = res.TransactionID
	// The payment is committed. Either write is enough for Get to report it.
	settleErr := s.sessions.Settle(ctx, id, payer, res.TransactionID)
	saveErr := s.sessions.Save(ctx, session, remaining)
	if settleErr != nil && saveErr != nil {
		s.logger.Error("paid session not recorded", "session_id", id, "transaction_id", res.TransactionID,
			"settle_error", settleErr, "save_error", saveErr)
		return session, fmt.Errorf("%w: transaction %s", ErrSessionNotRecorded, res.TransactionID)
	}
	if saveErr != nil {
		s.logger.Warn("persist paid session", "session_id", id, "transaction_id", res.TransactionID, "error", saveErr)
	}
	if settleErr != nil {
		s.logger.Warn("settle session claim", "session_id", id, "transaction_id", res.TransactionID, "error", settleErr)
	}
	s.logger.Info("payment session paid", "session_id", id, "payer", payer, "transaction_id", res.TransactionID)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPaymentReceived,
			Destination: session.Merchant,
			Body:        fmt.Sprintf("%s paid %s for %s", payer, session.Amount, session.Reference),
		})
	}
	return session, nil
}

// ValidateSession returns the session to the merchant that created it.
func (s *Service) ValidateSession(ctx context.Context, id, merchant string) (Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if session.Merchant != merchant {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}
