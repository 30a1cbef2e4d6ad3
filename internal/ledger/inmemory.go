package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type transferRecord struct {
	kind   string
	result TransferResult
}

type inMemoryLedger struct {
	mu        sync.Mutex
	accounts  map[string]Account
	transfers map[string]transferRecord
}

// NewInMemory creates a concurrency-safe in-memory ledger used in tests and
// in dev mode when no database is configured.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		accounts:  make(map[string]Account),
		transfers: make(map[string]transferRecord),
	}
}

func (l *inMemoryLedger) CreateAccount(_ context.Context, account Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[account.Number]; !exists {
		if account.Status == "" {
			account.Status = StatusActive
		}
		if account.CreatedAt.IsZero() {
			account.CreatedAt = time.Now().UTC()
		}
		l.accounts[account.Number] = account
	}
	return nil
}

func (l *inMemoryLedger) Account(_ context.Context, number string) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, exists := l.accounts[number]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (l *inMemoryLedger) Balance(_ context.Context, number string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, exists := l.accounts[number]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return account.Balance, nil
}

// Transfer holds the ledger mutex for the whole check-debit-credit sequence,
// so concurrent transfers against the same account serialize and a lost
// update cannot occur.
func (l *inMemoryLedger) Transfer(_ context.Context, fromNumber, toNumber, kind, clientKey string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrAmountNotPositive
	}
	if fromNumber == toNumber {
		return TransferResult{}, ErrSameAccount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, exists := l.transfers[clientKey]; exists {
		if rec.kind != kind {
			return TransferResult{}, ErrConflictingTransfer
		}
		return rec.result, ErrDuplicateTransfer
	}

	from, ok := l.accounts[fromNumber]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}
	to, ok := l.accounts[toNumber]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}
	if from.Status != StatusActive || to.Status != StatusActive {
		return TransferResult{}, ErrAccountInactive
	}

	if from.Balance < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	from.Balance -= amount
	to.Balance += amount
	l.accounts[fromNumber] = from
	l.accounts[toNumber] = to

	res := TransferResult{
		TransferID:  uuid.NewString(),
		FromBalance: from.Balance,
		ToBalance:   to.Balance,
	}
	l.transfers[clientKey] = transferRecord{kind: kind, result: res}
	return res, nil
}
