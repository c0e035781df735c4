package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/metrics"
	"github.com/friendcoin/friendcoin/internal/notification"
)

// Service runs peer-to-peer transfers through the ledger engine.
type Service struct {
	engine   *ledger.Engine
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService constructs a payment service.
func NewService(engine *ledger.Engine, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{engine: engine, notifier: notifier, metrics: m, logger: logger}
}

// TransferInput captures the data needed to move funds between accounts.
type TransferInput struct {
	From   string
	To     string
	Amount currency.Amount
	Notes  string
}

// Transfer moves Amount to the recipient and withholds the transfer tax from
// the sender.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.TransferResult, error) {
	res, err := s.engine.Transfer(ctx, ledger.TransferInput{
		From:   input.From,
		To:     input.To,
		Amount: input.Amount,
		Notes:  input.Notes,
	})
	s.metrics.ObserveOperation(string(ledger.KindTransfer), err)
	if err != nil {
		s.logger.Info("transfer rejected", "from", input.From, "to", input.To, "amount", input.Amount.String(), "error", err)
		return ledger.TransferResult{}, err
	}
	s.metrics.AddTax(res.Tax.Units())
	s.logger.Info("transfer completed", "transaction_id", res.TransactionID, "from", input.From, "to", input.To,
		"amount", res.Amount.String(), "tax", res.Tax.String())

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: input.To,
			Body:        fmt.Sprintf("You received %s from %s", res.Amount, input.From),
		})
	}
	return res, nil
}
