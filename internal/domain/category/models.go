package category

import "errors"

// UncategorizedID is the reserved category row seeded by the first migration.
const UncategorizedID int64 = 0

var ErrCategoryNotFound = errors.New("category not found")

// Group is a budget grouping of categories
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Category is a user-managed budget category
type Category struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	GroupID *int64 `json:"groupId,omitempty"`
}
