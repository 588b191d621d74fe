package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"finsync/internal/domain/transaction"
)

const transactionColumns = `id, account_id, amount, posted, transacted_at, payee_id, description, memo, pending, content_hash, created_at`

// TransactionRepository implements transaction.Repository for PostgreSQL
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var transactedAt sql.NullTime
	var payeeID sql.NullInt64

	err := row.Scan(
		&t.ID, &t.AccountID, &t.Amount, &t.Posted, &transactedAt, &payeeID,
		&t.Description, &t.Memo, &t.Pending, &t.ContentHash, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.TransactedAt = timePtr(transactedAt)
	t.PayeeID = int64Ptr(payeeID)
	return &t, nil
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// GetByID retrieves a transaction with its splits
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if err := r.loadSplits(ctx, []*transaction.Transaction{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// Exists checks if a transaction id is already stored
func (r *TransactionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}
	return exists, nil
}

// ExistsByHash checks for a transaction with the same content on the account
func (r *TransactionRepository) ExistsByHash(ctx context.Context, accountID, contentHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE account_id = $1 AND content_hash = $2)`,
		accountID, contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	return exists, nil
}

// Create inserts a transaction and its splits
func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, amount, posted, transacted_at, payee_id,
		                          description, memo, pending, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	var transactedAt sql.NullTime
	if t.TransactedAt != nil {
		transactedAt = sql.NullTime{Time: *t.TransactedAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.AccountID, t.Amount, t.Posted, transactedAt, nullInt64Ptr(t.PayeeID),
		t.Description, t.Memo, t.Pending, t.ContentHash,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return r.insertSplits(ctx, t.ID, t.Splits)
}

// Update writes the scalar fields of a transaction
func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	query := `
		UPDATE transactions SET
			amount = $2, posted = $3, transacted_at = $4, payee_id = $5,
			description = $6, memo = $7, pending = $8, content_hash = $9
		WHERE id = $1
	`
	var transactedAt sql.NullTime
	if t.TransactedAt != nil {
		transactedAt = sql.NullTime{Time: *t.TransactedAt, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		t.ID, t.Amount, t.Posted, transactedAt, nullInt64Ptr(t.PayeeID),
		t.Description, t.Memo, t.Pending, t.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return expectOneRow(result, transaction.ErrTransactionNotFound)
}

// ReplaceSplits swaps all splits of a transaction
func (r *TransactionRepository) ReplaceSplits(ctx context.Context, transactionID string, splits []transaction.Split) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM splits WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	return r.insertSplits(ctx, transactionID, splits)
}

func (r *TransactionRepository) insertSplits(ctx context.Context, transactionID string, splits []transaction.Split) error {
	query := `INSERT INTO splits (transaction_id, category_id, amount) VALUES ($1, $2, $3) RETURNING id`
	for i := range splits {
		s := &splits[i]
		s.TransactionID = transactionID
		if err := r.db.QueryRowContext(ctx, query, transactionID, s.CategoryID, s.Amount).Scan(&s.ID); err != nil {
			return fmt.Errorf("failed to create split: %w", err)
		}
	}
	return nil
}

// Delete removes a transaction; its splits cascade
func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectOneRow(result, transaction.ErrTransactionNotFound)
}

// ListByAccount retrieves all transactions of an account with splits, newest first
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1 ORDER BY posted DESC, id`
	return r.listWithSplits(ctx, query, accountID)
}

// ListRecentByAccount retrieves at most limit transactions, newest first
func (r *TransactionRepository) ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1 ORDER BY posted DESC, id LIMIT $2`
	return r.listWithSplits(ctx, query, accountID, limit)
}

func (r *TransactionRepository) listWithSplits(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadSplits(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadSplits fills the splits of all given transactions with one query.
func (r *TransactionRepository) loadSplits(ctx context.Context, txns []*transaction.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	byID := make(map[string]*transaction.Transaction, len(txns))
	ids := make([]string, 0, len(txns))
	for _, t := range txns {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, category_id, amount FROM splits WHERE transaction_id = ANY($1) ORDER BY id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s transaction.Split
		if err := rows.Scan(&s.ID, &s.TransactionID, &s.CategoryID, &s.Amount); err != nil {
			return fmt.Errorf("failed to scan split: %w", err)
		}
		if t := byID[s.TransactionID]; t != nil {
			t.Splits = append(t.Splits, s)
		}
	}
	return rows.Err()
}

// Reassign moves a transaction to another account together with its new content hash
func (r *TransactionRepository) Reassign(ctx context.Context, id, accountID, contentHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET account_id = $2, content_hash = $3 WHERE id = $1`,
		id, accountID, contentHash)
	if err != nil {
		return fmt.Errorf("failed to reassign transaction: %w", err)
	}
	return expectOneRow(result, transaction.ErrTransactionNotFound)
}

// SetPayee sets or clears the payee of a transaction
func (r *TransactionRepository) SetPayee(ctx context.Context, id string, payeeID *int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE transactions SET payee_id = $2 WHERE id = $1`, id, nullInt64Ptr(payeeID))
	if err != nil {
		return fmt.Errorf("failed to set payee: %w", err)
	}
	return expectOneRow(result, transaction.ErrTransactionNotFound)
}
