package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"finsync/internal/domain/category"
)

// CategoryRepository implements category.Repository for PostgreSQL
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository creates a new PostgreSQL category repository
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List retrieves all categories ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]*category.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, group_id FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*category.Category
	for rows.Next() {
		var c category.Category
		var groupID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &groupID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.GroupID = int64Ptr(groupID)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// FindIDByName looks a category up case-insensitively
func (r *CategoryRepository) FindIDByName(ctx context.Context, name string) (*int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE LOWER(name) = LOWER($1) ORDER BY id LIMIT 1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return &id, nil
}
