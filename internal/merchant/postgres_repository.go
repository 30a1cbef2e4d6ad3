package merchant

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores merchants in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a merchant record.
func (r *PostgresRepository) Create(ctx context.Context, m Merchant) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO merchants (code, name, account_number, active, created_at)
        VALUES ($1, $2, $3, $4, $5)`, m.Code, m.Name, m.AccountNumber, m.Active, m.CreatedAt.UTC())
	return err
}

// FindByCode fetches a merchant by its integration code.
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (Merchant, error) {
	row := r.db.QueryRow(ctx, `SELECT code, name, account_number, active, created_at
        FROM merchants WHERE code = $1`, code)
	var m Merchant
	var createdAt time.Time
	if err := row.Scan(&m.Code, &m.Name, &m.AccountNumber, &m.Active, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Merchant{}, ErrNotFound
		}
		return Merchant{}, err
	}
	m.CreatedAt = createdAt.UTC()
	return m, nil
}

// List returns every merchant record.
func (r *PostgresRepository) List(ctx context.Context) ([]Merchant, error) {
	rows, err := r.db.Query(ctx, `SELECT code, name, account_number, active, created_at FROM merchants ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Merchant
	for rows.Next() {
		var m Merchant
		var createdAt time.Time
		if err := rows.Scan(&m.Code, &m.Name, &m.AccountNumber, &m.Active, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = createdAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}
