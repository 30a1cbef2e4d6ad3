package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists accounts and transfers in PostgreSQL. Row locks on
// the two accounts make the check-debit-credit sequence atomic across
// replicated API processes sharing one database.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateAccount inserts an account record unless the number is already taken.
func (l *PostgresLedger) CreateAccount(ctx context.Context, account Account) error {
	if account.Status == "" {
		account.Status = StatusActive
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (number, holder_name, bank_code, bank_name, phone, balance, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (number) DO NOTHING`,
		account.Number, account.HolderName, account.BankCode, account.BankName,
		account.Phone, account.Balance, account.Status, account.CreatedAt)
	return err
}

// Account fetches an account record by number.
func (l *PostgresLedger) Account(ctx context.Context, number string) (Account, error) {
	const query = `SELECT number, holder_name, bank_code, bank_name, phone, balance, status, created_at
        FROM accounts WHERE number = $1`
	var a Account
	var createdAt time.Time
	err := l.db.QueryRow(ctx, query, number).Scan(&a.Number, &a.HolderName, &a.BankCode,
		&a.BankName, &a.Phone, &a.Balance, &a.Status, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	a.CreatedAt = createdAt.UTC()
	return a, nil
}

// Balance returns the current balance for the specified account number.
func (l *PostgresLedger) Balance(ctx context.Context, number string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE number = $1`, number).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Transfer moves amount between two accounts inside a single database
// transaction. Both rows are locked in number order to avoid deadlocks
// between concurrent transfers touching the same pair.
func (l *PostgresLedger) Transfer(ctx context.Context, fromNumber, toNumber, kind, clientKey string, amount int64) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrAmountNotPositive
	}
	if fromNumber == toNumber {
		return TransferResult{}, ErrSameAccount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	first, second := fromNumber, toNumber
	if second < first {
		first, second = second, first
	}
	fromAcct, toAcct := Account{}, Account{}
	for _, number := range []string{first, second} {
		locked, err := lockAccount(ctx, tx, number)
		if err != nil {
			return TransferResult{}, err
		}
		switch number {
		case fromNumber:
			fromAcct = locked
		case toNumber:
			toAcct = locked
		}
	}

	const existingQuery = `SELECT id, kind, from_balance, to_balance FROM transfers WHERE client_key = $1`
	var existingID uuid.UUID
	var existingKind string
	var fromBal, toBal int64
	if err := tx.QueryRow(ctx, existingQuery, clientKey).Scan(&existingID, &existingKind, &fromBal, &toBal); err == nil {
		if existingKind != kind {
			return TransferResult{}, ErrConflictingTransfer
		}
		return TransferResult{TransferID: existingID.String(), FromBalance: fromBal, ToBalance: toBal}, ErrDuplicateTransfer
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, err
	}

	if fromAcct.Status != StatusActive || toAcct.Status != StatusActive {
		return TransferResult{}, ErrAccountInactive
	}
	if fromAcct.Balance < amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE number = $2`, amount, fromNumber); err != nil {
		return TransferResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE number = $2`, amount, toNumber); err != nil {
		return TransferResult{}, err
	}

	transferID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transfers (id, kind, client_key, from_number, to_number, amount, from_balance, to_balance, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		transferID, kind, clientKey, fromNumber, toNumber, amount,
		fromAcct.Balance-amount, toAcct.Balance+amount, time.Now().UTC()); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		TransferID:  transferID.String(),
		FromBalance: fromAcct.Balance - amount,
		ToBalance:   toAcct.Balance + amount,
	}, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, number string) (Account, error) {
	const query = `SELECT number, balance, status FROM accounts WHERE number = $1 FOR UPDATE`
	var a Account
	if err := tx.QueryRow(ctx, query, number).Scan(&a.Number, &a.Balance, &a.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("account %s: %w", number, ErrAccountNotFound)
		}
		return Account{}, err
	}
	return a, nil
}
