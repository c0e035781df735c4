package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/logging"
)

func TestOpenIsIdempotentAndRaisesCap(t *testing.T) {
	store := ledger.NewInMemory(100)
	svc := NewService(store, logging.Discard())
	ctx := context.Background()

	first, err := svc.Open(ctx, "alice")
	require.NoError(t, err)
	ledger.SeedBalance(store, "alice", currency.Amount{Coins: 3})

	again, err := svc.Open(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, currency.Amount{Coins: 3}, again.Balance)

	_, err = svc.Open(ctx, "bob")
	require.NoError(t, err)

	circ, err := store.CirculationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), circ.Users)
	assert.Equal(t, int64(120), circ.Cap())

	_, err = svc.Open(ctx, "  ")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestBalanceAndHistory(t *testing.T) {
	store := ledger.NewInMemory(1_000)
	svc := NewService(store, logging.Discard())
	engine := ledger.NewEngine(store)
	ctx := context.Background()

	_, err := svc.Balance(ctx, "ghost")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	_, err = svc.History(ctx, "ghost", 10)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	svc.Open(ctx, "alice")
	svc.Open(ctx, "bob")
	ledger.SeedBalance(store, "alice", currency.Amount{Coins: 20})
	_, err = engine.Transfer(ctx, ledger.TransferInput{From: "alice", To: "bob", Amount: currency.Amount{Coins: 10}})
	require.NoError(t, err)

	bal, err := svc.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "9.50f€", bal.Amount.String())

	history, err := svc.History(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ledger.KindTransfer, history[0].Kind)
}

func TestRestrictBlocksLoans(t *testing.T) {
	store := ledger.NewInMemory(1_000)
	svc := NewService(store, logging.Discard())
	engine := ledger.NewEngine(store)
	ctx := context.Background()
	svc.Open(ctx, "alice")

	r, err := svc.Restrict(ctx, RestrictInput{AccountID: "alice", Reason: "chargeback", Duration: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, ledger.RestrictionBankingDisabled, r.Kind)
	require.NotNil(t, r.ExpiresAt)

	_, err = engine.IssueLoan(ctx, "alice", currency.Amount{Coins: 1})
	assert.ErrorIs(t, err, ledger.ErrAccountRestricted)

	_, err = svc.Restrict(ctx, RestrictInput{AccountID: "ghost", Reason: "x"})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
