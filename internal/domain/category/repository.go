package category

import "context"

// Repository defines the interface for category data access
type Repository interface {
	List(ctx context.Context) ([]*Category, error)

	// FindIDByName matches case-insensitively. Returns nil, nil when absent.
	FindIDByName(ctx context.Context, name string) (*int64, error)
}
