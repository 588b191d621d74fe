package reconcile

import (
	"context"
	"fmt"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
)

// Detector loads accounts and transactions and runs duplicate detection.
type Detector struct {
	accounts AccountStore
	txns     TransactionStore
	opts     Options
}

// NewDetector creates a new duplicate account detector
func NewDetector(accounts AccountStore, txns TransactionStore, opts Options) *Detector {
	return &Detector{accounts: accounts, txns: txns, opts: opts}
}

// FindDuplicates returns every duplicate group currently in storage.
func (d *Detector) FindDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	accounts, err := d.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	txns, err := d.loadCandidateTransactions(ctx, accounts)
	if err != nil {
		return nil, err
	}
	return FindDuplicates(accounts, txns, d.opts), nil
}

// IsDuplicate reports whether the account belongs to any duplicate group.
func (d *Detector) IsDuplicate(ctx context.Context, accountID string) (bool, error) {
	groups, err := d.FindDuplicates(ctx)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g.Contains(accountID) {
			return true, nil
		}
	}
	return false, nil
}

// loadCandidateTransactions only loads transactions for accounts that share
// org and name with another account. The oldest account of each group is only
// ever sampled, so just its most recent transactions are read.
func (d *Detector) loadCandidateTransactions(ctx context.Context, accounts []*account.Account) (map[string][]*transaction.Transaction, error) {
	groups := make(map[identity][]*account.Account)
	for _, a := range accounts {
		key := identityOf(a)
		groups[key] = append(groups[key], a)
	}

	sampleSize := d.opts.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultOptions().SampleSize
	}

	txns := make(map[string][]*transaction.Transaction)
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sortOldestFirst(members)

		for i, a := range members {
			var (
				list []*transaction.Transaction
				err  error
			)
			if i == 0 {
				list, err = d.txns.ListRecentByAccount(ctx, a.ID, sampleSize)
			} else {
				list, err = d.txns.ListByAccount(ctx, a.ID)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to list transactions for account %s: %w", a.ID, err)
			}
			txns[a.ID] = list
		}
	}
	return txns, nil
}

func identityOf(a *account.Account) identity {
	key := identity{name: a.Name}
	if a.OrgID != nil {
		key.orgID = *a.OrgID
	}
	return key
}
