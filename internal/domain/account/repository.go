package account

import (
	"context"
	"time"
)

// Repository defines the interface for account data access.
// This interface is defined in the domain layer, but implemented in the infrastructure layer.
type Repository interface {
	// GetByID returns ErrAccountNotFound when missing.
	GetByID(ctx context.Context, id string) (*Account, error)

	Exists(ctx context.Context, id string) (bool, error)

	// List returns accounts with org and latest balance, ordered by org and name.
	List(ctx context.Context, includeHidden bool) ([]*Details, error)

	// ListAll returns every account, hidden ones included.
	ListAll(ctx context.Context) ([]*Account, error)

	// ListUnclassified returns accounts whose type is unset.
	ListUnclassified(ctx context.Context) ([]*Account, error)

	// Upsert creates the account (stamping created_at) or refreshes name,
	// currency and org. The type is written only while the stored type is null.
	// created reports whether a new row was inserted.
	Upsert(ctx context.Context, params UpsertParams) (acct *Account, created bool, err error)

	Update(ctx context.Context, id string, params UpdateParams) (*Account, error)

	SetType(ctx context.Context, id string, t Type) error

	// Delete removes the account; balances, transactions and holdings cascade.
	Delete(ctx context.Context, id string) error
}

// OrgRepository defines the interface for org data access
type OrgRepository interface {
	Upsert(ctx context.Context, org *Org) error
}

// BalanceRepository defines the interface for balance snapshots
type BalanceRepository interface {
	Exists(ctx context.Context, accountID string, date time.Time) (bool, error)
	Create(ctx context.Context, b *Balance) error

	// Latest returns nil, nil when the account has no balance yet.
	Latest(ctx context.Context, accountID string) (*Balance, error)
}

// HoldingRepository defines the interface for holding data access
type HoldingRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, h *Holding) error
	CountByAccount(ctx context.Context, accountID string) (int, error)

	// ReassignAll moves every holding of one account to another and returns how many moved.
	ReassignAll(ctx context.Context, fromAccountID, toAccountID string) (int, error)
}

// PayeeUse is an uncategorized payee together with the description of one
// transaction it appears on.
type PayeeUse struct {
	PayeeID     int64
	PayeeName   string
	Description string
}

// LoanPayeeStore is the payee access needed by the loan re-categorization pass.
type LoanPayeeStore interface {
	// ListUncategorizedByAccount returns each payee still at the uncategorized
	// category once, with the description of its earliest transaction on the account.
	ListUncategorizedByAccount(ctx context.Context, accountID string) ([]PayeeUse, error)

	UpdateCategory(ctx context.Context, payeeID, categoryID int64) error
}

// TxRunner runs fn inside one database transaction carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
