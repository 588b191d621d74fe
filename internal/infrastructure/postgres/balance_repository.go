package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/account"
)

// BalanceRepository implements account.BalanceRepository for PostgreSQL
type BalanceRepository struct {
	db *DB
}

// NewBalanceRepository creates a new PostgreSQL balance repository
func NewBalanceRepository(db *DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Exists checks for a snapshot of the account at date
func (r *BalanceRepository) Exists(ctx context.Context, accountID string, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM balances WHERE account_id = $1 AND balance_date = $2)`,
		accountID, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check balance existence: %w", err)
	}
	return exists, nil
}

// Create stores a balance snapshot. A snapshot for the same date is kept.
func (r *BalanceRepository) Create(ctx context.Context, b *account.Balance) error {
	query := `
		INSERT INTO balances (account_id, balance, available_balance, balance_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, balance_date) DO NOTHING
		RETURNING id
	`
	var available decimal.NullDecimal
	if b.AvailableBalance != nil {
		available = decimal.NewNullDecimal(*b.AvailableBalance)
	}

	err := r.db.QueryRowContext(ctx, query, b.AccountID, b.Balance, available, b.BalanceDate).Scan(&b.ID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or nil when there is none
func (r *BalanceRepository) Latest(ctx context.Context, accountID string) (*account.Balance, error) {
	query := `
		SELECT id, account_id, balance, available_balance, balance_date
		FROM balances
		WHERE account_id = $1
		ORDER BY balance_date DESC
		LIMIT 1
	`
	var b account.Balance
	var available decimal.NullDecimal
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&b.ID, &b.AccountID, &b.Balance, &available, &b.BalanceDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest balance: %w", err)
	}
	if available.Valid {
		b.AvailableBalance = &available.Decimal
	}
	return &b, nil
}
