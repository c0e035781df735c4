package loans

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/logging"
	"github.com/friendcoin/friendcoin/internal/metrics"
	"github.com/friendcoin/friendcoin/internal/notification"
)

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, notification.Message) error {
	return errors.New("smtp down")
}

func setup(t *testing.T) (ledger.Store, *metrics.Metrics) {
	t.Helper()
	store := ledger.NewInMemory(1_000)
	_, err := store.EnsureAccount(context.Background(), "alice")
	require.NoError(t, err)
	return store, metrics.New()
}

func clock(t time.Time) ledger.Option {
	return ledger.WithClock(func() time.Time { return t })
}

func TestIssueRepayAndList(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store, m := setup(t)
	svc := NewService(ledger.NewEngine(store, clock(now)), nil, m, logging.Discard())
	ctx := context.Background()

	loan, err := svc.Issue(ctx, "alice", currency.Amount{Coins: 20, Fraction: 50})
	require.NoError(t, err)
	assert.Equal(t, ledger.LoanStatusActive, loan.Status)
	assert.Equal(t, time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC), loan.DueDate)

	circ, err := store.CirculationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(21), circ.Total)

	_, err = svc.Issue(ctx, "alice", currency.Amount{Coins: 1})
	assert.ErrorIs(t, err, ledger.ErrActiveLoanExists)

	res, err := svc.Repay(ctx, "alice", loan.ID, currency.Amount{Coins: 20, Fraction: 50})
	require.NoError(t, err)
	assert.Equal(t, ledger.LoanStatusPaid, res.Loan.Status)
	assert.True(t, res.Balance.IsZero())

	circ, err = store.CirculationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), circ.Total)

	second, err := svc.Issue(ctx, "alice", currency.Amount{Coins: 4})
	require.NoError(t, err)
	assert.Equal(t, ledger.LoanStatusActive, second.Status)

	circ, err = store.CirculationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), circ.Total)

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{ledger.LoanStatusActive, ledger.LoanStatusPaid}, []string{list[0].Status, list[1].Status})
}

func TestRepayUnknownLoan(t *testing.T) {
	store, m := setup(t)
	svc := NewService(ledger.NewEngine(store), nil, m, logging.Discard())

	_, err := svc.Repay(context.Background(), "alice", "missing", currency.Amount{Coins: 1})
	assert.ErrorIs(t, err, ledger.ErrLoanNotFound)
}

func TestNotifyOverdue(t *testing.T) {
	issued := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store, m := setup(t)
	ctx := context.Background()
	_, err := store.EnsureAccount(ctx, "bob")
	require.NoError(t, err)

	issuer := NewService(ledger.NewEngine(store, clock(issued)), nil, m, logging.Discard())
	overdueLoan, err := issuer.Issue(ctx, "alice", currency.Amount{Coins: 5})
	require.NoError(t, err)

	later := issued.AddDate(0, 1, 15)
	fresh := NewService(ledger.NewEngine(store, clock(later)), nil, m, logging.Discard())
	_, err = fresh.Issue(ctx, "bob", currency.Amount{Coins: 5})
	require.NoError(t, err)

	recorder := &notification.Recorder{}
	svc := NewService(ledger.NewEngine(store, clock(later)), recorder, m, logging.Discard())
	sent, err := svc.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notification.KindLoanOverdue, msgs[0].Kind)
	assert.Equal(t, "alice", msgs[0].Destination)
	assert.Contains(t, msgs[0].Body, overdueLoan.ID)
	assert.Contains(t, msgs[0].Body, "5.00f€")
}

func TestNotifyOverdueCountsOnlyDelivered(t *testing.T) {
	issued := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store, m := setup(t)
	ctx := context.Background()

	_, err := NewService(ledger.NewEngine(store, clock(issued)), nil, m, logging.Discard()).
		Issue(ctx, "alice", currency.Amount{Coins: 5})
	require.NoError(t, err)

	svc := NewService(ledger.NewEngine(store, clock(issued.AddDate(1, 0, 0))), failingNotifier{}, m, logging.Discard())
	sent, err := svc.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}
