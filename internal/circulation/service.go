package circulation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/friendcoin/friendcoin/internal/apperr"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/metrics"
)

// Status is the circulation counter together with its current ceiling.
type Status struct {
	Total     int64 `json:"total_coins_in_circulation"`
	BaseCoins int64 `json:"total_base_coins"`
	Users     int64 `json:"registered_users"`
	Cap       int64 `json:"circulation_cap"`
	Headroom  int64 `json:"headroom"`
}

func statusOf(c ledger.Circulation) Status {
	return Status{
		Total:     c.Total,
		BaseCoins: c.BaseCoins,
		Users:     c.Users,
		Cap:       c.Cap(),
		Headroom:  c.Cap() - c.Total,
	}
}

// Service reads and adjusts the global circulation counter.
type Service struct {
	engine  *ledger.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService constructs a circulation service.
func NewService(engine *ledger.Engine, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{engine: engine, metrics: m, logger: logger}
}

// Status returns the counter and the cap derived from the registered users.
func (s *Service) Status(ctx context.Context) (Status, error) {
	circ, err := s.engine.Store().CirculationStatus(ctx)
	if err != nil {
		return Status{}, err
	}
	s.metrics.SetCirculation(circ.Total)
	return statusOf(circ), nil
}

// Adjust moves the counter by delta coins within [0, cap].
func (s *Service) Adjust(ctx context.Context, delta int64, reason string) (Status, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Status{}, apperr.Validation("reason is required", nil)
	}
	if delta == 0 {
		return Status{}, apperr.Validation("delta must not be zero", nil)
	}
	circ, err := s.engine.AdjustCirculation(ctx, delta, reason)
	s.metrics.ObserveOperation("circulation_adjust", err)
	if err != nil {
		s.logger.Warn("circulation adjustment rejected", "delta", delta, "reason", reason, "error", err)
		return Status{}, err
	}
	s.metrics.SetCirculation(circ.Total)
	s.logger.Info("circulation adjusted", "delta", delta, "total", circ.Total, "reason", reason)
	return statusOf(circ), nil
}
