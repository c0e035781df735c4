package loans

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/metrics"
	"github.com/friendcoin/friendcoin/internal/notification"
)

// Service issues and collects bank loans.
type Service struct {
	engine   *ledger.Engine
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService constructs a loan service.
func NewService(engine *ledger.Engine, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{engine: engine, notifier: notifier, metrics: m, logger: logger}
}

// Issue grants a new loan to the borrower.
func (s *Service) Issue(ctx context.Context, borrower string, amount currency.Amount) (ledger.Loan, error) {
	loan, err := s.engine.IssueLoan(ctx, borrower, amount)
	s.metrics.ObserveOperation(string(ledger.KindLoan), err)
	if err != nil {
		s.logger.Info("loan rejected", "borrower", borrower, "amount", amount.String(), "error", err)
		return ledger.Loan{}, err
	}
	s.refreshCirculation(ctx)
	s.logger.Info("loan issued", "loan_id", loan.ID, "borrower", borrower, "amount", amount.String(), "due_date", loan.DueDate)
	return loan, nil
}

// Repay applies a payment to one of the borrower's active loans.
func (s *Service) Repay(ctx context.Context, borrower, loanID string, amount currency.Amount) (ledger.RepaymentResult, error) {
	res, err := s.engine.RepayLoan(ctx, borrower, loanID, amount)
	s.metrics.ObserveOperation(string(ledger.KindLoanPayment), err)
	if err != nil {
		return ledger.RepaymentResult{}, err
	}
	if res.Loan.Status == ledger.LoanStatusPaid {
		s.refreshCirculation(ctx)
		s.logger.Info("loan repaid", "loan_id", loanID, "borrower", borrower)
	}
	return res, nil
}

// List returns the borrower's loans, newest first.
func (s *Service) List(ctx context.Context, borrower string) ([]ledger.Loan, error) {
	return s.engine.Store().Loans(ctx, borrower)
}

// NotifyOverdue sends a reminder to every borrower whose active loan is past
// its due date and reports how many were sent.
func (s *Service) NotifyOverdue(ctx context.Context) (int, error) {
	overdue, err := s.engine.Store().OverdueLoans(ctx, s.engine.Now())
	if err != nil {
		return 0, fmt.Errorf("list overdue loans: %w", err)
	}

	sent := 0
	for _, loan := range overdue {
		if s.notifier == nil {
			break
		}
		err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindLoanOverdue,
			Destination: loan.Borrower,
			Body: fmt.Sprintf("Loan %s was due on %s; %s remains outstanding",
				loan.ID, loan.DueDate.Format("2006-01-02"), loan.Remaining()),
		})
		if err != nil {
			s.logger.Warn("overdue notice failed", "loan_id", loan.ID, "borrower", loan.Borrower, "error", err)
			continue
		}
		sent++
	}
	s.metrics.OverdueNotified(sent)
	s.logger.Info("overdue loans checked", "overdue", len(overdue), "notified", sent)
	return sent, nil
}

func (s *Service) refreshCirculation(ctx context.Context) {
	circ, err := s.engine.Store().CirculationStatus(ctx)
	if err != nil {
		s.logger.Warn("read circulation", "error", err)
		return
	}
	s.metrics.SetCirculation(circ.Total)
}
