package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"finsync/internal/domain/account"
	"finsync/internal/domain/payee"
)

// PayeeRepository implements payee.Repository and account.LoanPayeeStore for PostgreSQL
type PayeeRepository struct {
	db *DB
}

// NewPayeeRepository creates a new PostgreSQL payee repository
func NewPayeeRepository(db *DB) *PayeeRepository {
	return &PayeeRepository{db: db}
}

// GetByID retrieves a payee by id
func (r *PayeeRepository) GetByID(ctx context.Context, id int64) (*payee.Payee, error) {
	var p payee.Payee
	err := r.db.QueryRowContext(ctx, `SELECT id, name, category_id FROM payees WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CategoryID)
	if err == sql.ErrNoRows {
		return nil, payee.ErrPayeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payee: %w", err)
	}
	return &p, nil
}

// GetByName retrieves a payee by exact name, or nil when there is none
func (r *PayeeRepository) GetByName(ctx context.Context, name string) (*payee.Payee, error) {
	var p payee.Payee
	err := r.db.QueryRowContext(ctx, `SELECT id, name, category_id FROM payees WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.CategoryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payee by name: %w", err)
	}
	return &p, nil
}

// Create inserts a payee. A concurrent insert of the same name returns the existing row.
func (r *PayeeRepository) Create(ctx context.Context, name string, categoryID int64) (*payee.Payee, error) {
	query := `
		INSERT INTO payees (name, category_id)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, category_id
	`
	var p payee.Payee
	if err := r.db.QueryRowContext(ctx, query, name, categoryID).Scan(&p.ID, &p.Name, &p.CategoryID); err != nil {
		return nil, fmt.Errorf("failed to create payee: %w", err)
	}
	return &p, nil
}

// UpdateCategory sets the default category of a payee
func (r *PayeeRepository) UpdateCategory(ctx context.Context, id, categoryID int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE payees SET category_id = $2 WHERE id = $1`, id, categoryID)
	if err != nil {
		return fmt.Errorf("failed to update payee category: %w", err)
	}
	return expectOneRow(result, payee.ErrPayeeNotFound)
}

// ListUncategorizedByAccount returns each uncategorized payee used on the
// account once, with the description of its earliest transaction there.
func (r *PayeeRepository) ListUncategorizedByAccount(ctx context.Context, accountID string) ([]account.PayeeUse, error) {
	query := `
		SELECT DISTINCT ON (p.id) p.id, p.name, t.description
		FROM transactions t
		JOIN payees p ON p.id = t.payee_id
		WHERE t.account_id = $1 AND p.category_id = 0
		ORDER BY p.id, t.posted ASC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uncategorized payees: %w", err)
	}
	defer rows.Close()

	var out []account.PayeeUse
	for rows.Next() {
		var u account.PayeeUse
		if err := rows.Scan(&u.PayeeID, &u.PayeeName, &u.Description); err != nil {
			return nil, fmt.Errorf("failed to scan payee: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
