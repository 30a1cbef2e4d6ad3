package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func newTestAccount(number string) Account {
	return Account{Number: number, HolderName: "Holder " + number, BankCode: "TSTB", BankName: "Test Bank", Status: StatusActive}
}

func TestInMemoryLedger_TransferMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if err := l.CreateAccount(ctx, newTestAccount("1001")); err != nil {
		t.Fatalf("create account 1001: %v", err)
	}
	if err := l.CreateAccount(ctx, newTestAccount("1002")); err != nil {
		t.Fatalf("create account 1002: %v", err)
	}

	SeedBalance(l, "1001", 10_000)

	res, err := l.Transfer(ctx, "1001", "1002", KindIntake, "client-1", 1_500)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if res.FromBalance != 8_500 {
		t.Fatalf("expected from balance 8500, got %d", res.FromBalance)
	}
	if res.ToBalance != 1_500 {
		t.Fatalf("expected to balance 1500, got %d", res.ToBalance)
	}
	if res.TransferID == "" {
		t.Fatal("expected a transfer reference")
	}

	ledgerImpl := l.(*inMemoryLedger)
	total := ledgerImpl.accounts["1001"].Balance + ledgerImpl.accounts["1002"].Balance
	if total != 10_000 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_DuplicateTransfer(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, newTestAccount("1001"))
	l.CreateAccount(ctx, newTestAccount("1002"))
	SeedBalance(l, "1001", 5_000)

	first, err := l.Transfer(ctx, "1001", "1002", KindSettlement, "dup", 500)
	if err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}

	replay, err := l.Transfer(ctx, "1001", "1002", KindSettlement, "dup", 500)
	if err != ErrDuplicateTransfer {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if replay.TransferID != first.TransferID {
		t.Fatalf("replay should return the original transfer, got %q want %q", replay.TransferID, first.TransferID)
	}
	if bal, _ := l.Balance(ctx, "1001"); bal != 4_500 {
		t.Fatalf("replay moved funds, balance=%d", bal)
	}
}

func TestInMemoryLedger_ConflictingKindSameKey(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, newTestAccount("9001"))
	l.CreateAccount(ctx, newTestAccount("2001"))
	l.CreateAccount(ctx, newTestAccount("1001"))
	SeedBalance(l, "9001", 2_000)

	key := ReleaseKey("txn-1")
	if _, err := l.Transfer(ctx, "9001", "2001", KindSettlement, key, 980); err != nil {
		t.Fatalf("settlement transfer failed: %v", err)
	}

	// The refund reuses the release key with a different kind; it must be
	// refused without moving funds.
	if _, err := l.Transfer(ctx, "9001", "1001", KindRefund, key, 980); err != ErrConflictingTransfer {
		t.Fatalf("expected conflicting transfer error, got %v", err)
	}
	if bal, _ := l.Balance(ctx, "9001"); bal != 1_020 {
		t.Fatalf("conflicting transfer moved funds, custody=%d", bal)
	}
	if bal, _ := l.Balance(ctx, "1001"); bal != 0 {
		t.Fatalf("conflicting transfer credited payer, balance=%d", bal)
	}
}

func TestInMemoryLedger_SameAccountTransfer(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, newTestAccount("1001"))
	SeedBalance(l, "1001", 1_000)

	if _, err := l.Transfer(ctx, "1001", "1001", KindIntake, "self", 100); err != ErrSameAccount {
		t.Fatalf("expected same account error, got %v", err)
	}
	if bal, _ := l.Balance(ctx, "1001"); bal != 1_000 {
		t.Fatalf("self transfer changed balance, got %d", bal)
	}
}

func TestInMemoryLedger_InactiveAccount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, newTestAccount("1001"))
	frozen := newTestAccount("1002")
	frozen.Status = StatusFrozen
	l.CreateAccount(ctx, frozen)
	SeedBalance(l, "1001", 5_000)

	if _, err := l.Transfer(ctx, "1001", "1002", KindIntake, "c1", 500); err != ErrAccountInactive {
		t.Fatalf("expected inactive account error, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentTransfersConserveFunds(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, newTestAccount("1001"))
	l.CreateAccount(ctx, newTestAccount("1002"))
	SeedBalance(l, "1001", 100_000)
	ledgerImpl := l.(*inMemoryLedger)

	const workers = 10
	const amount = int64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("tx-%d", i)
			if _, err := l.Transfer(ctx, "1001", "1002", KindIntake, key, amount); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := ledgerImpl.accounts["1001"].Balance + ledgerImpl.accounts["1002"].Balance
	if total != 100_000 {
		t.Fatalf("ledger not balanced after concurrency, total=%d", total)
	}
}

func TestInMemoryLedger_ConcurrentOverdraw(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, newTestAccount("1001"))
	l.CreateAccount(ctx, newTestAccount("1002"))
	l.CreateAccount(ctx, newTestAccount("1003"))
	SeedBalance(l, "1001", 1_000)

	// Two transfers both want the full balance; exactly one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []string{"1002", "1003"}
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Transfer(ctx, "1001", targets[i], KindSettlement, fmt.Sprintf("race-%d", i), 1_000)
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range errs {
		switch err {
		case nil:
			successes++
		case ErrInsufficientFunds:
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one insufficient, got %d/%d", successes, insufficient)
	}
	if bal, _ := l.Balance(ctx, "1001"); bal != 0 {
		t.Fatalf("source balance should be exactly zero, got %d", bal)
	}
}
