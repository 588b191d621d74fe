package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/account"
)

const accountColumns = `a.id, a.name, a.alt_name, a.currency, a.org_id, a.is_hidden, a.account_type, a.created_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, extra ...any) (*account.Account, error) {
	var acc account.Account
	var altName, orgID, accountType sql.NullString
	var createdAt sql.NullTime

	dest := append([]any{
		&acc.ID, &acc.Name, &altName, &acc.Currency, &orgID, &acc.IsHidden, &accountType, &createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	acc.AltName = stringPtr(altName)
	acc.OrgID = stringPtr(orgID)
	acc.CreatedAt = timePtr(createdAt)
	if accountType.Valid {
		t := account.Type(accountType.String)
		acc.Type = &t
	}
	return &acc, nil
}

func nullType(t *account.Type) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// Exists checks if an account exists
func (r *AccountRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

// List retrieves accounts with their org and latest balance
func (r *AccountRepository) List(ctx context.Context, includeHidden bool) ([]*account.Details, error) {
	query := `
		SELECT ` + accountColumns + `, COALESCE(o.name, ''), COALESCE(o.domain, ''), b.balance, b.balance_date
		FROM accounts a
		LEFT JOIN orgs o ON o.id = a.org_id
		LEFT JOIN LATERAL (
			SELECT balance, balance_date
			FROM balances
			WHERE account_id = a.id
			ORDER BY balance_date DESC
			LIMIT 1
		) b ON TRUE
		WHERE $1 OR NOT a.is_hidden
		ORDER BY o.name NULLS LAST, a.name
	`

	rows, err := r.db.QueryContext(ctx, query, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*account.Details
	for rows.Next() {
		var d account.Details
		var balance decimal.NullDecimal
		var balanceDate sql.NullTime

		acc, err := scanAccount(rows, &d.OrgName, &d.OrgDomain, &balance, &balanceDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		d.Account = *acc
		d.DisplayName = acc.DisplayName()
		if balance.Valid {
			d.Balance = &balance.Decimal
		}
		d.BalanceDate = timePtr(balanceDate)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ListAll retrieves every account, hidden ones included
func (r *AccountRepository) ListAll(ctx context.Context) ([]*account.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts a ORDER BY a.created_at, a.id`)
}

// ListUnclassified retrieves accounts without a type
func (r *AccountRepository) ListUnclassified(ctx context.Context) ([]*account.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.account_type IS NULL ORDER BY a.id`)
}

func (r *AccountRepository) list(ctx context.Context, query string, args ...any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// Upsert inserts or refreshes an account. The stored type wins over the
// classified one.
func (r *AccountRepository) Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, bool, error) {
	query := `
		INSERT INTO accounts AS a (id, name, currency, org_id, account_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			currency = EXCLUDED.currency,
			org_id = EXCLUDED.org_id,
			account_type = COALESCE(a.account_type, EXCLUDED.account_type)
		RETURNING ` + accountColumns + `, (xmax = 0)
	`

	var created bool
	acc, err := scanAccount(
		r.db.QueryRowContext(ctx, query, params.ID, params.Name, params.Currency, nullString(params.OrgID), nullType(params.Type)),
		&created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert account: %w", err)
	}
	return acc, created, nil
}

// Update applies a manual edit. Nil fields are left unchanged.
func (r *AccountRepository) Update(ctx context.Context, id string, params account.UpdateParams) (*account.Account, error) {
	query := `
		UPDATE accounts AS a SET
			name = COALESCE($2, a.name),
			alt_name = COALESCE($3, a.alt_name),
			currency = COALESCE($4, a.currency),
			is_hidden = COALESCE($5, a.is_hidden),
			account_type = COALESCE($6, a.account_type)
		WHERE a.id = $1
		RETURNING ` + accountColumns

	var hidden sql.NullBool
	if params.IsHidden != nil {
		hidden = sql.NullBool{Bool: *params.IsHidden, Valid: true}
	}

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query,
		id, nullStringPtr(params.Name), nullStringPtr(params.AltName), nullStringPtr(params.Currency), hidden, nullType(params.Type),
	))
	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return acc, nil
}

// SetType stores an account type
func (r *AccountRepository) SetType(ctx context.Context, id string, t account.Type) error {
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET account_type = $2 WHERE id = $1`, id, string(t))
	if err != nil {
		return fmt.Errorf("failed to set account type: %w", err)
	}
	return expectOneRow(result, account.ErrAccountNotFound)
}

// Delete removes an account
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOneRow(result, account.ErrAccountNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// OrgRepository implements account.OrgRepository for PostgreSQL
type OrgRepository struct {
	db *DB
}

// NewOrgRepository creates a new PostgreSQL org repository
func NewOrgRepository(db *DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// Upsert inserts or refreshes an org
func (r *OrgRepository) Upsert(ctx context.Context, org *account.Org) error {
	query := `
		INSERT INTO orgs (id, name, url, sfin_url, domain)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			sfin_url = EXCLUDED.sfin_url,
			domain = EXCLUDED.domain
	`
	_, err := r.db.ExecContext(ctx, query, org.ID, org.Name, nullString(org.URL), nullString(org.SfinURL), nullString(org.Domain))
	if err != nil {
		return fmt.Errorf("failed to upsert org: %w", err)
	}
	return nil
}
