package coupons

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/metrics"
	"github.com/friendcoin/friendcoin/internal/notification"
)

// Service creates and redeems bearer coupons.
type Service struct {
	engine   *ledger.Engine
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService constructs a coupon service.
func NewService(engine *ledger.Engine, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{engine: engine, notifier: notifier, metrics: m, logger: logger}
}

// Create debits the creator and returns the new coupon with its code.
func (s *Service) Create(ctx context.Context, creator string, amount currency.Amount) (ledger.Coupon, error) {
	coupon, err := s.engine.CreateCoupon(ctx, creator, amount)
	s.metrics.ObserveOperation("coupon_create", err)
	if err != nil {
		return ledger.Coupon{}, err
	}
	s.logger.Info("coupon created", "creator", creator, "amount", amount.String())
	return coupon, nil
}

// Redeem credits the redeemer and tells the creator their coupon was used.
func (s *Service) Redeem(ctx context.Context, redeemer, code string) (ledger.RedemptionResult, error) {
	res, err := s.engine.RedeemCoupon(ctx, redeemer, code)
	s.metrics.ObserveOperation(string(ledger.KindCouponRedeem), err)
	if err != nil {
		return ledger.RedemptionResult{}, err
	}
	s.logger.Info("coupon redeemed", "transaction_id", res.TransactionID, "redeemer", redeemer, "creator", res.Coupon.CreatedBy)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindCouponRedeemed,
			Destination: res.Coupon.CreatedBy,
			Body:        fmt.Sprintf("Your coupon worth %s was redeemed by %s", res.Coupon.Amount, redeemer),
		})
	}
	return res, nil
}

// Lookup returns a coupon by code. Only its creator may see it.
func (s *Service) Lookup(ctx context.Context, requester, code string) (ledger.Coupon, error) {
	coupon, err := s.engine.Store().Coupon(ctx, code)
	if err != nil {
		return ledger.Coupon{}, err
	}
	if coupon.CreatedBy != requester {
		return ledger.Coupon{}, ledger.ErrCouponNotFound
	}
	return coupon, nil
}
