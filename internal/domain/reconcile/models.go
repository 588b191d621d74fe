package reconcile

import (
	"errors"

	"finsync/internal/domain/account"
)

// Domain errors
var (
	ErrMergeMismatch = errors.New("can only merge accounts with matching org_id and name")
	ErrSameAccount   = errors.New("source and target must be different accounts")
)

// Options tunes duplicate detection.
type Options struct {
	// SampleSize is how many of the older account's most recent transactions are compared.
	SampleSize int
	// MinMatchRatio is the fraction of the sample that must appear in the newer account.
	MinMatchRatio float64
}

// DefaultOptions returns a sample of 5 with an 80% match requirement.
func DefaultOptions() Options {
	return Options{SampleSize: 5, MinMatchRatio: 0.8}
}

// DuplicateGroup is a set of accounts believed to be the same real-world account.
// Accounts are ordered oldest first.
type DuplicateGroup struct {
	OrgID    string             `json:"orgId"`
	Name     string             `json:"name"`
	Accounts []*account.Account `json:"accounts"`
}

// Contains reports whether the group holds the account.
func (g DuplicateGroup) Contains(accountID string) bool {
	for _, a := range g.Accounts {
		if a.ID == accountID {
			return true
		}
	}
	return false
}

// MergeRequest names the accounts to fold together.
type MergeRequest struct {
	SourceID string `json:"sourceAccountId"`
	TargetID string `json:"targetAccountId"`
	// PreserveCategorization copies splits and payee from a removed source
	// transaction onto its match. The HTTP and CLI surfaces default it to true.
	PreserveCategorization bool `json:"preserveCategorization"`
	// LookbackMonths approximates how far back the provider can re-deliver.
	// Zero uses the merger default.
	LookbackMonths int `json:"lookbackMonths"`
}

// MergeStats reports what a merge did.
type MergeStats struct {
	TransactionsReassigned int  `json:"transactions_reassigned"`
	TransactionsRemoved    int  `json:"transactions_removed"`
	TransactionsMatched    int  `json:"transactions_matched"`
	HoldingsReassigned     int  `json:"holdings_reassigned"`
	SourceAccountDeleted   bool `json:"source_account_deleted"`
}
