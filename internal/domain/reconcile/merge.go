package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
)

// DefaultLookbackMonths approximates how much history the provider re-sends.
const DefaultLookbackMonths = 12

// Merger folds a duplicate source account into a target account.
type Merger struct {
	accounts AccountStore
	txns     TransactionStore
	holdings HoldingMover
	tx       TxRunner
	lookback int
	now      func() time.Time
}

// NewMerger creates a new account merger. lookbackMonths <= 0 uses DefaultLookbackMonths.
func NewMerger(accounts AccountStore, txns TransactionStore, holdings HoldingMover, tx TxRunner, lookbackMonths int) *Merger {
	if lookbackMonths <= 0 {
		lookbackMonths = DefaultLookbackMonths
	}
	return &Merger{
		accounts: accounts,
		txns:     txns,
		holdings: holdings,
		tx:       tx,
		lookback: lookbackMonths,
		now:      time.Now,
	}
}

// Merge moves the source account into the target inside one database transaction.
//
// Source transactions posted on or after the cutoff (now minus lookback months
// of 30 days) will be re-delivered under the target, so they are deleted. One
// that matches a target transaction by natural key counts as matched and, when
// categorization is preserved, has its splits and payee copied first. Older
// source transactions are moved to the target. Holdings are moved and the
// source account is deleted.
func (m *Merger) Merge(ctx context.Context, req MergeRequest) (*MergeStats, error) {
	if req.SourceID == req.TargetID {
		return nil, ErrSameAccount
	}
	lookback := req.LookbackMonths
	if lookback <= 0 {
		lookback = m.lookback
	}

	log.Printf("Merging account %s into %s (preserve categorization: %t)", req.SourceID, req.TargetID, req.PreserveCategorization)

	stats := &MergeStats{}
	err := m.tx.RunInTx(ctx, func(ctx context.Context) error {
		source, target, err := m.loadPair(ctx, req.SourceID, req.TargetID)
		if err != nil {
			return err
		}
		if !source.SameIdentity(target) {
			return ErrMergeMismatch
		}

		cutoff := m.now().AddDate(0, 0, -lookback*30)
		if err := m.mergeTransactions(ctx, source.ID, target.ID, cutoff, req.PreserveCategorization, stats); err != nil {
			return err
		}

		moved, err := m.holdings.ReassignAll(ctx, source.ID, target.ID)
		if err != nil {
			return fmt.Errorf("failed to reassign holdings: %w", err)
		}
		stats.HoldingsReassigned = moved

		if err := m.accounts.Delete(ctx, source.ID); err != nil {
			return fmt.Errorf("failed to delete source account: %w", err)
		}
		stats.SourceAccountDeleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Merge complete: %+v", *stats)
	return stats, nil
}

func (m *Merger) loadPair(ctx context.Context, sourceID, targetID string) (*account.Account, *account.Account, error) {
	source, err := m.accounts.GetByID(ctx, sourceID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	target, err := m.accounts.GetByID(ctx, targetID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	return source, target, nil
}

func notFound(err error) error {
	if errors.Is(err, account.ErrAccountNotFound) {
		return fmt.Errorf("source or target %w", account.ErrAccountNotFound)
	}
	return err
}

func (m *Merger) mergeTransactions(ctx context.Context, sourceID, targetID string, cutoff time.Time, preserve bool, stats *MergeStats) error {
	sourceTxns, err := m.txns.ListByAccount(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to list source transactions: %w", err)
	}
	targetTxns, err := m.txns.ListByAccount(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to list target transactions: %w", err)
	}

	targets := make(map[transaction.NaturalKey]*transaction.Transaction, len(targetTxns))
	for _, t := range targetTxns {
		targets[t.NaturalKey()] = t
	}

	for _, src := range sourceTxns {
		if src.Posted.Before(cutoff) {
			// The hash includes the account id, so it has to follow the move.
			hash := transaction.ContentHash(targetID, &src.Posted, src.Amount, src.Description)
			if err := m.txns.Reassign(ctx, src.ID, targetID, hash); err != nil {
				return fmt.Errorf("failed to reassign transaction %s: %w", src.ID, err)
			}
			stats.TransactionsReassigned++
			continue
		}

		if dst, ok := targets[src.NaturalKey()]; ok {
			if preserve {
				if err := m.copyCategorization(ctx, src, dst); err != nil {
					return err
				}
			}
			stats.TransactionsMatched++
		}

		if err := m.txns.Delete(ctx, src.ID); err != nil {
			return fmt.Errorf("failed to delete transaction %s: %w", src.ID, err)
		}
		stats.TransactionsRemoved++
	}
	return nil
}

func (m *Merger) copyCategorization(ctx context.Context, src, dst *transaction.Transaction) error {
	splits := make([]transaction.Split, 0, len(src.Splits))
	for _, s := range src.Splits {
		splits = append(splits, transaction.Split{
			TransactionID: dst.ID,
			CategoryID:    s.CategoryID,
			Amount:        s.Amount,
		})
	}
	if err := m.txns.ReplaceSplits(ctx, dst.ID, splits); err != nil {
		return fmt.Errorf("failed to copy splits onto %s: %w", dst.ID, err)
	}
	if src.PayeeID != nil {
		if err := m.txns.SetPayee(ctx, dst.ID, src.PayeeID); err != nil {
			return fmt.Errorf("failed to copy payee onto %s: %w", dst.ID, err)
		}
	}
	return nil
}
