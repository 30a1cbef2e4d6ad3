package merchant

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Merchant
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Merchant)}
}

func (r *memoryRepository) Create(_ context.Context, m Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[m.Code]; exists {
		return errors.New("merchant code taken")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.storage[m.Code] = m
	return nil
}

func (r *memoryRepository) FindByCode(_ context.Context, code string) (Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.storage[code]
	if !ok {
		return Merchant{}, ErrNotFound
	}
	return m, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Merchant, 0, len(r.storage))
	for _, m := range r.storage {
		out = append(out, m)
	}
	return out, nil
}
