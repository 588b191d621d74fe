package transaction

import "context"

// Repository defines the interface for transaction data access.
// Implementations read the active database transaction from ctx when one is open.
type Repository interface {
	// GetByID returns ErrTransactionNotFound when missing. Splits are loaded.
	GetByID(ctx context.Context, id string) (*Transaction, error)

	Exists(ctx context.Context, id string) (bool, error)

	// ExistsByHash reports whether the account already holds a transaction with this content hash.
	ExistsByHash(ctx context.Context, accountID, contentHash string) (bool, error)

	// Create inserts the transaction and its splits.
	Create(ctx context.Context, txn *Transaction) error

	// Update writes the scalar fields of txn (not its splits).
	Update(ctx context.Context, txn *Transaction) error

	// ReplaceSplits deletes all splits of the transaction and inserts the given ones.
	ReplaceSplits(ctx context.Context, transactionID string, splits []Split) error

	Delete(ctx context.Context, id string) error

	// ListByAccount returns all transactions of an account with splits, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*Transaction, error)

	// ListRecentByAccount returns at most limit transactions ordered by posted desc.
	ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]*Transaction, error)

	// Reassign moves a transaction to another account. contentHash must be
	// the hash recomputed for the new account.
	Reassign(ctx context.Context, id, accountID, contentHash string) error

	SetPayee(ctx context.Context, id string, payeeID *int64) error
}

// TxRunner runs fn inside one database transaction carried by the ctx passed to fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
