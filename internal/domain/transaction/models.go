package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UncategorizedID is the reserved category row every default split points at.
const UncategorizedID int64 = 0

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidInput        = errors.New("invalid input")
)

// SplitMismatchError is returned when a transaction's splits do not add up to its amount.
type SplitMismatchError struct {
	TransactionID string
	Expected      decimal.Decimal
	Actual        decimal.Decimal
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("transaction %s: amount=%s, splits total=%s", e.TransactionID, e.Expected, e.Actual)
}

// Is lets callers treat a split mismatch as an input validation failure.
func (e *SplitMismatchError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Transaction is one ledger event on an account.
type Transaction struct {
	ID           string          `json:"id"` // provider id, or a generated uuid for manual entries
	AccountID    string          `json:"accountId"`
	Amount       decimal.Decimal `json:"amount"`
	Posted       time.Time       `json:"posted"`
	TransactedAt *time.Time      `json:"transactedAt,omitempty"`
	PayeeID      *int64          `json:"payeeId,omitempty"`
	Description  string          `json:"description"`
	Memo         string          `json:"memo"`
	Pending      bool            `json:"pending"`
	ContentHash  string          `json:"contentHash"`
	Splits       []Split         `json:"splits"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Split allocates part of a transaction's amount to a category.
type Split struct {
	ID            int64           `json:"id"`
	TransactionID string          `json:"transactionId"`
	CategoryID    int64           `json:"categoryId"`
	Amount        decimal.Decimal `json:"amount"`
}

// NaturalKey identifies a transaction by content rather than provider id.
type NaturalKey struct {
	Posted      int64
	Amount      string
	Description string
}

// NaturalKey returns the (posted, amount, description) key used to match
// the same real-world event across accounts.
func (t *Transaction) NaturalKey() NaturalKey {
	var posted int64
	if !t.Posted.IsZero() {
		posted = t.Posted.UTC().UnixMicro()
	}
	return NaturalKey{
		Posted:      posted,
		Amount:      canonicalAmount(t.Amount),
		Description: t.Description,
	}
}

// SplitTotal sums the amounts of all splits.
func (t *Transaction) SplitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range t.Splits {
		total = total.Add(s.Amount)
	}
	return total
}

// ValidateSplits checks the split invariant. A transaction without splits is valid.
func (t *Transaction) ValidateSplits() error {
	if len(t.Splits) == 0 {
		return nil
	}
	if total := t.SplitTotal(); !total.Equal(t.Amount) {
		return &SplitMismatchError{TransactionID: t.ID, Expected: t.Amount, Actual: total}
	}
	return nil
}

// SplitParams describes one category allocation on create or update.
type SplitParams struct {
	CategoryID int64           `json:"categoryId"`
	Amount     decimal.Decimal `json:"amount"`
}

// CreateParams holds the fields for a new transaction.
type CreateParams struct {
	ID           string
	AccountID    string
	Amount       decimal.Decimal
	Posted       time.Time
	TransactedAt *time.Time
	Payee        string
	Description  string
	Memo         string
	Pending      bool
	Splits       []SplitParams
}

// Validate checks required fields for creation
func (p CreateParams) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return nil
}

// UpdateParams holds optional fields; nil means unchanged. A non-nil Splits
// replaces all existing splits.
type UpdateParams struct {
	Amount       *decimal.Decimal
	Posted       *time.Time
	TransactedAt *time.Time
	Payee        *string
	Description  *string
	Memo         *string
	Splits       []SplitParams
}

func toSplits(transactionID string, params []SplitParams) []Split {
	splits := make([]Split, 0, len(params))
	for _, p := range params {
		splits = append(splits, Split{
			TransactionID: transactionID,
			CategoryID:    p.CategoryID,
			Amount:        p.Amount,
		})
	}
	return splits
}
