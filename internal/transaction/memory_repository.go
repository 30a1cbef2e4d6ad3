package transaction

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.Mutex
	storage map[string]Transaction
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Transaction)}
}

func (r *memoryRepository) Create(_ context.Context, txn Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[txn.ID]; exists {
		return errors.New("transaction exists")
	}
	r.storage[txn.ID] = txn
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.storage[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return txn, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(Transaction) bool { return true }), nil
}

func (r *memoryRepository) ListPending(_ context.Context) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(t Transaction) bool { return t.OverallStatus == StatusPending }), nil
}

// Settle applies the outcome under the repository lock, so the pending check
// and the state flip are a single compare-and-set.
func (r *memoryRepository) Settle(_ context.Context, id string, outcome SettlementOutcome) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.storage[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if txn.OverallStatus != StatusPending {
		return txn, ErrSettled
	}

	if outcome.PayeeToAdminStatus != "" {
		txn.PayeeToAdminStatus = outcome.PayeeToAdminStatus
		txn.PayeeToAdminDescription = outcome.PayeeToAdminDescription
	}
	settledAt := outcome.SettledAt
	txn.AdminToMerchantStatus = outcome.AdminToMerchantStatus
	txn.AdminToMerchantDescription = outcome.AdminToMerchantDescription
	txn.AdminToMerchantReference = outcome.AdminToMerchantReference
	txn.AdminToMerchantTime = &settledAt
	txn.OverallStatus = outcome.OverallStatus
	if outcome.SettlementGroupID != "" {
		txn.SettlementGroupID = outcome.SettlementGroupID
	}

	r.storage[id] = txn
	return txn, nil
}

func (r *memoryRepository) collect(keep func(Transaction) bool) []Transaction {
	out := make([]Transaction, 0, len(r.storage))
	for _, txn := range r.storage {
		if keep(txn) {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
