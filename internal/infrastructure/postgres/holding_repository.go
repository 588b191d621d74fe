package postgres

import (
	"context"
	"fmt"

	"finsync/internal/domain/account"
)

// HoldingRepository implements account.HoldingRepository for PostgreSQL
type HoldingRepository struct {
	db *DB
}

// NewHoldingRepository creates a new PostgreSQL holding repository
func NewHoldingRepository(db *DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// Exists checks if a holding exists
func (r *HoldingRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM holdings WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check holding existence: %w", err)
	}
	return exists, nil
}

// Create stores a holding
func (r *HoldingRepository) Create(ctx context.Context, h *account.Holding) error {
	query := `
		INSERT INTO holdings (id, account_id, created, currency, cost_basis, description,
		                      market_value, purchase_price, shares, symbol)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		h.ID, h.AccountID, h.Created, h.Currency, h.CostBasis, h.Description,
		h.MarketValue, h.PurchasePrice, h.Shares, h.Symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}
	return nil
}

// CountByAccount counts the holdings of an account
func (r *HoldingRepository) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM holdings WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count holdings: %w", err)
	}
	return n, nil
}

// ReassignAll moves every holding of one account to another
func (r *HoldingRepository) ReassignAll(ctx context.Context, fromAccountID, toAccountID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE holdings SET account_id = $2 WHERE account_id = $1`, fromAccountID, toAccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign holdings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
