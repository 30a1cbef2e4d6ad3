package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates no account exists for the requested number.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive indicates the account is frozen or closed and may not
	// take part in transfers.
	ErrAccountInactive = errors.New("account not active")

	// ErrDuplicateTransfer indicates the provided client key was already used
	// with the same transfer kind; callers should treat the returned result as
	// the outcome of the original transfer.
	ErrDuplicateTransfer = errors.New("duplicate transfer")

	// ErrConflictingTransfer indicates the provided client key was already used
	// with a different transfer kind. Money moved for the other kind; the caller
	// must not apply its own movement.
	ErrConflictingTransfer = errors.New("conflicting transfer")

	// ErrSameAccount rejects transfers where source and destination are the
	// same account.
	ErrSameAccount = errors.New("source and destination are the same account")

	// ErrAmountNotPositive rejects zero or negative transfer amounts.
	ErrAmountNotPositive = errors.New("amount must be positive")
)

// Account statuses.
const (
	StatusActive = "active"
	StatusFrozen = "frozen"
	StatusClosed = "closed"
)

// Transfer kinds recorded against the ledger for idempotent replay detection.
const (
	KindIntake     = "intake"
	KindSettlement = "settlement"
	KindRefund     = "refund"
)

// IntakeKey builds the transfer client key for the payer-to-custody hop of a
// transaction.
func IntakeKey(txnID string) string { return "intake:" + txnID }

// ReleaseKey builds the transfer client key for the custody-out hop of a
// transaction. Settlement and refund share this key: whichever of the two
// movements lands second hits ErrConflictingTransfer instead of draining
// custody a second time for the same transaction.
func ReleaseKey(txnID string) string { return "release:" + txnID }

// Account is a bank account record. Balances are minor-unit integers and are
// mutated exclusively through Transfer.
type Account struct {
	Number     string
	HolderName string
	BankCode   string
	BankName   string
	Phone      string
	Balance    int64
	Status     string
	CreatedAt  time.Time
}

// TransferResult captures the outcome of a ledger transfer.
type TransferResult struct {
	TransferID  string
	FromBalance int64
	ToBalance   int64
}

// Ledger defines the contract implemented by balance backends. Transfer is the
// only operation allowed to move money: the balance check and the debit/credit
// pair execute as one atomic unit. Client keys are unique across all kinds;
// replaying a key with the same kind returns the original result with
// ErrDuplicateTransfer, replaying it with a different kind fails with
// ErrConflictingTransfer. Neither moves funds.
type Ledger interface {
	CreateAccount(ctx context.Context, account Account) error
	Account(ctx context.Context, number string) (Account, error)
	Balance(ctx context.Context, number string) (int64, error)
	Transfer(ctx context.Context, fromNumber, toNumber, kind, clientKey string, amount int64) (TransferResult, error)
}
