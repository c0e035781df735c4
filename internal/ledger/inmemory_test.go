package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/friendcoin/friendcoin/internal/currency"
)

func coins(c, f int64) currency.Amount {
	return currency.Amount{Coins: c, Fraction: f}
}

func TestInMemoryStore_TransferMaintainsBalance(t *testing.T) {
	s := NewInMemory(1_000)
	e := NewEngine(s)
	ctx := context.Background()

	if _, err := s.EnsureAccount(ctx, "alice"); err != nil {
		t.Fatalf("ensure account alice: %v", err)
	}
	if _, err := s.EnsureAccount(ctx, "bob"); err != nil {
		t.Fatalf("ensure account bob: %v", err)
	}
	SeedBalance(s, "alice", coins(100, 0))

	res, err := e.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: coins(10, 0)})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if res.SenderBalance != coins(89, 50) {
		t.Fatalf("expected sender balance 89.50, got %s", res.SenderBalance)
	}
	if res.RecipientBalance != coins(10, 0) {
		t.Fatalf("expected recipient balance 10.00, got %s", res.RecipientBalance)
	}
	if res.Tax != coins(0, 50) {
		t.Fatalf("expected tax 0.50, got %s", res.Tax)
	}
}

func TestInMemoryStore_ConcurrentTransfers(t *testing.T) {
	s := NewInMemory(1_000)
	e := NewEngine(s)
	ctx := context.Background()
	s.EnsureAccount(ctx, "alice")
	s.EnsureAccount(ctx, "bob")
	SeedBalance(s, "alice", coins(100, 0))

	const workers = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: coins(5, 0)}); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	a, _ := s.Balance(ctx, "alice")
	b, _ := s.Balance(ctx, "bob")
	if a != coins(47, 50) {
		t.Fatalf("expected alice 47.50 after concurrency, got %s", a)
	}
	if b != coins(50, 0) {
		t.Fatalf("expected bob 50.00 after concurrency, got %s", b)
	}
}

func TestInMemoryStore_OppositeTransfersDoNotLoseUpdates(t *testing.T) {
	s := NewInMemory(1_000)
	e := NewEngine(s)
	ctx := context.Background()
	s.EnsureAccount(ctx, "alice")
	s.EnsureAccount(ctx, "bob")
	SeedBalance(s, "alice", coins(100, 0))
	SeedBalance(s, "bob", coins(100, 0))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: coins(1, 0)})
		}()
		go func() {
			defer wg.Done()
			e.Transfer(ctx, TransferInput{From: "bob", To: "alice", Amount: coins(1, 0)})
		}()
	}
	wg.Wait()

	a, _ := s.Balance(ctx, "alice")
	b, _ := s.Balance(ctx, "bob")
	// 40 transfers at 0.05 tax each.
	if total, err := currency.Add(a, b); err != nil || total != coins(198, 0) {
		t.Fatalf("expected 198.00 left after tax, got %s + %s", a, b)
	}
}

func TestInMemoryStore_FailedUnitLeavesStateUntouched(t *testing.T) {
	s := NewInMemory(1_000)
	e := NewEngine(s)
	ctx := context.Background()
	s.EnsureAccount(ctx, "alice")
	s.EnsureAccount(ctx, "bob")
	SeedBalance(s, "alice", coins(20, 0))

	boom := errors.New("disk on fire")
	FailOn(s, "AppendTransaction", boom)

	if _, err := e.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: coins(10, 0)}); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	a, _ := s.Balance(ctx, "alice")
	b, _ := s.Balance(ctx, "bob")
	if a != coins(20, 0) || !b.IsZero() {
		t.Fatalf("balances changed by failed transfer: alice=%s bob=%s", a, b)
	}
	history, _ := s.Transactions(ctx, "alice", 0)
	if len(history) != 0 {
		t.Fatalf("expected no transaction records, got %d", len(history))
	}
}

func TestInMemoryStore_Restrictions(t *testing.T) {
	s := NewInMemory(1_000)
	ctx := context.Background()
	s.EnsureAccount(ctx, "alice")

	if err := s.Restrict(ctx, Restriction{AccountID: "ghost", Kind: RestrictionBankingDisabled}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}

	past := time.Now().Add(-time.Hour)
	if err := s.Restrict(ctx, Restriction{AccountID: "alice", Kind: RestrictionBankingDisabled, ExpiresAt: &past}); err != nil {
		t.Fatalf("restrict: %v", err)
	}

	var restricted bool
	s.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		restricted, _ = tx.Restricted(ctx, "alice", RestrictionBankingDisabled, time.Now())
		return nil
	})
	if restricted {
		t.Fatalf("expired restriction should not apply")
	}
}

func TestInMemoryStore_HistoryNewestFirst(t *testing.T) {
	s := NewInMemory(1_000)
	e := NewEngine(s)
	ctx := context.Background()
	s.EnsureAccount(ctx, "alice")
	s.EnsureAccount(ctx, "bob")
	SeedBalance(s, "alice", coins(100, 0))

	for i := int64(1); i <= 3; i++ {
		if _, err := e.Transfer(ctx, TransferInput{From: "alice", To: "bob", Amount: coins(i, 0)}); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}

	history, err := s.Transactions(ctx, "bob", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	if history[0].Amount != coins(3, 0) || history[1].Amount != coins(2, 0) {
		t.Fatalf("unexpected order: %s, %s", history[0].Amount, history[1].Amount)
	}
}
