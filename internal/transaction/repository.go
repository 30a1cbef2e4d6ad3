package transaction

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no transaction exists for the requested id.
	ErrNotFound = errors.New("transaction not found")

	// ErrSettled indicates the transaction already left the pending state, so a
	// second settlement attempt was rejected. Callers must surface this rather
	// than swallow it so a stale retry is detectable.
	ErrSettled = errors.New("transaction already settled")
)

// SettlementOutcome describes the hop-2 result applied to a pending
// transaction. PayeeToAdminStatus is only set on rejection, when the intake
// leg flips to refunded.
type SettlementOutcome struct {
	PayeeToAdminStatus         string
	PayeeToAdminDescription    string
	AdminToMerchantStatus      string
	AdminToMerchantDescription string
	AdminToMerchantReference   string
	OverallStatus              string
	SettlementGroupID          string
	SettledAt                  time.Time
}

// Repository persists transaction records. Settle is a compare-and-set: it
// applies the outcome only while the record is still pending and returns
// ErrSettled otherwise, which is what keeps two concurrent settlement
// attempts from both claiming the same transaction.
type Repository interface {
	Create(ctx context.Context, txn Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context) ([]Transaction, error)
	ListPending(ctx context.Context) ([]Transaction, error)
	Settle(ctx context.Context, id string, outcome SettlementOutcome) (Transaction, error)
}
