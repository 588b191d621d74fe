package payee

import "errors"

var ErrPayeeNotFound = errors.New("payee not found")

// Payee is a recognised counterparty with a default category suggestion.
// CategoryID 0 means uncategorized.
type Payee struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"categoryId"`
}
