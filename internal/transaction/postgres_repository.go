package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores transaction records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transactionColumns = `id, integration_code, settlement_group_id, from_account, to_account, admin_account,
    original_amount, commission, amount_to_merchant,
    payee_to_admin_status, payee_to_admin_description, payee_to_admin_time, payee_to_admin_reference,
    admin_to_merchant_status, admin_to_merchant_description, admin_to_merchant_time, admin_to_merchant_reference,
    overall_status, customer_name, customer_phone, customer_bank, reference, created_at`

// Create inserts a transaction record.
func (r *PostgresRepository) Create(ctx context.Context, txn Transaction) error {
	id, err := uuid.Parse(txn.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		id, txn.IntegrationCode, nullable(txn.SettlementGroupID), txn.FromAccount, txn.ToAccount, txn.AdminAccount,
		txn.OriginalAmount, txn.Commission, txn.AmountToMerchant,
		txn.PayeeToAdminStatus, txn.PayeeToAdminDescription, txn.PayeeToAdminTime.UTC(), nullable(txn.PayeeToAdminReference),
		txn.AdminToMerchantStatus, txn.AdminToMerchantDescription, txn.AdminToMerchantTime, nullable(txn.AdminToMerchantReference),
		txn.OverallStatus, txn.CustomerName, txn.CustomerPhone, txn.CustomerBank, txn.Reference, txn.CreatedAt.UTC())
	return err
}

// Get fetches a transaction by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	txnID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, txnID)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return txn, nil
}

// List returns all transaction records, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListPending returns records still awaiting the hop-2 decision.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE overall_status = $1 ORDER BY created_at ASC`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// Settle flips the record out of pending. The WHERE clause on overall_status
// makes the update a compare-and-set: zero affected rows on a non-pending
// record means a concurrent settlement got there first.
func (r *PostgresRepository) Settle(ctx context.Context, id string, outcome SettlementOutcome) (Transaction, error) {
	txnID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}

	row := r.db.QueryRow(ctx, `UPDATE transactions SET
        payee_to_admin_status = COALESCE(NULLIF($2, ''), payee_to_admin_status),
        payee_to_admin_description = COALESCE(NULLIF($3, ''), payee_to_admin_description),
        admin_to_merchant_status = $4,
        admin_to_merchant_description = $5,
        admin_to_merchant_reference = NULLIF($6, ''),
        admin_to_merchant_time = $7,
        overall_status = $8,
        settlement_group_id = COALESCE(NULLIF($9, ''), settlement_group_id)
        WHERE id = $1 AND overall_status = '`+StatusPending+`'
        RETURNING `+transactionColumns,
		txnID, outcome.PayeeToAdminStatus, outcome.PayeeToAdminDescription,
		outcome.AdminToMerchantStatus, outcome.AdminToMerchantDescription, outcome.AdminToMerchantReference,
		outcome.SettledAt.UTC(), outcome.OverallStatus, outcome.SettlementGroupID)

	txn, err := scanTransaction(row)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, err
	}

	// Nothing updated: either absent or already out of pending.
	existing, getErr := r.Get(ctx, id)
	if getErr != nil {
		return Transaction{}, getErr
	}
	return existing, ErrSettled
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	var id uuid.UUID
	var groupID, hop1Ref, hop2Ref *string
	var hop1Time, createdAt time.Time
	var hop2Time *time.Time
	if err := row.Scan(&id, &txn.IntegrationCode, &groupID, &txn.FromAccount, &txn.ToAccount, &txn.AdminAccount,
		&txn.OriginalAmount, &txn.Commission, &txn.AmountToMerchant,
		&txn.PayeeToAdminStatus, &txn.PayeeToAdminDescription, &hop1Time, &hop1Ref,
		&txn.AdminToMerchantStatus, &txn.AdminToMerchantDescription, &hop2Time, &hop2Ref,
		&txn.OverallStatus, &txn.CustomerName, &txn.CustomerPhone, &txn.CustomerBank, &txn.Reference, &createdAt); err != nil {
		return Transaction{}, err
	}
	txn.ID = id.String()
	txn.PayeeToAdminTime = hop1Time.UTC()
	txn.CreatedAt = createdAt.UTC()
	if groupID != nil {
		txn.SettlementGroupID = *groupID
	}
	if hop1Ref != nil {
		txn.PayeeToAdminReference = *hop1Ref
	}
	if hop2Ref != nil {
		txn.AdminToMerchantReference = *hop2Ref
	}
	if hop2Time != nil {
		utc := hop2Time.UTC()
		txn.AdminToMerchantTime = &utc
	}
	return txn, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
