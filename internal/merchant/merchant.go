package merchant

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no merchant exists for the requested routing code.
var ErrNotFound = errors.New("merchant not found")

// Merchant maps an integration code to the bank account that receives
// released funds. Records are seeded by operators; registration flows live
// outside this service.
type Merchant struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository persists merchant routing records.
type Repository interface {
	Create(ctx context.Context, m Merchant) error
	FindByCode(ctx context.Context, code string) (Merchant, error)
	List(ctx context.Context) ([]Merchant, error)
}
