package reconcile

import (
	"context"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
)

// AccountStore is the account access needed for detection and merging.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*account.Account, error)
	ListAll(ctx context.Context) ([]*account.Account, error)
	Delete(ctx context.Context, id string) error
}

// TransactionStore is the transaction access needed for detection and merging.
type TransactionStore interface {
	// ListByAccount must load splits.
	ListByAccount(ctx context.Context, accountID string) ([]*transaction.Transaction, error)
	// ListRecentByAccount returns at most limit transactions, newest first.
	ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]*transaction.Transaction, error)
	ReplaceSplits(ctx context.Context, transactionID string, splits []transaction.Split) error
	SetPayee(ctx context.Context, id string, payeeID *int64) error
	// Reassign moves a transaction and stores its content hash for the new account.
	Reassign(ctx context.Context, id, accountID, contentHash string) error
	Delete(ctx context.Context, id string) error
}

// HoldingMover moves holdings between accounts.
type HoldingMover interface {
	ReassignAll(ctx context.Context, fromAccountID, toAccountID string) (int, error)
}

// TxRunner runs fn inside one database transaction carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
