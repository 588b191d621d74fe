package payee

import "context"

// Repository defines the interface for payee data access
type Repository interface {
	// GetByID returns ErrPayeeNotFound when missing.
	GetByID(ctx context.Context, id int64) (*Payee, error)

	// GetByName returns nil, nil when no payee has this exact name.
	GetByName(ctx context.Context, name string) (*Payee, error)

	Create(ctx context.Context, name string, categoryID int64) (*Payee, error)

	UpdateCategory(ctx context.Context, id, categoryID int64) error
}
