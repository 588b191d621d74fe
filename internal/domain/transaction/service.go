package transaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"finsync/internal/domain/payee"
)

// PayeeResolver finds or creates the payee for a raw payee string.
type PayeeResolver interface {
	Resolve(ctx context.Context, rawName, description string, suggest payee.SuggestFunc) (*payee.Payee, error)
}

// AccountChecker reports whether an account exists.
type AccountChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service contains the business logic for transaction operations
type Service struct {
	repo     Repository
	payees   PayeeResolver
	accounts AccountChecker
	tx       TxRunner
}

// NewService creates a new transaction service
func NewService(repo Repository, payees PayeeResolver, accounts AccountChecker, tx TxRunner) *Service {
	return &Service{repo: repo, payees: payees, accounts: accounts, tx: tx}
}

// Create adds a manually entered transaction.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	exists, err := s.accounts.Exists(ctx, params.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: account %s does not exist", ErrInvalidInput, params.AccountID)
	}
	return s.CreateWithSuggestion(ctx, params, nil)
}

// CreateWithSuggestion builds and stores a transaction. suggest is handed to the
// payee resolver and only used when the payee does not exist yet. When no splits
// are given the whole amount goes to one uncategorized split. A split mismatch is
// reported before anything is written.
func (s *Service) CreateWithSuggestion(ctx context.Context, params CreateParams, suggest payee.SuggestFunc) (*Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}

	txn := &Transaction{
		ID:           id,
		AccountID:    params.AccountID,
		Amount:       params.Amount,
		Posted:       params.Posted,
		TransactedAt: params.TransactedAt,
		Description:  params.Description,
		Memo:         params.Memo,
		Pending:      params.Pending,
	}
	txn.ContentHash = HashOf(txn)

	if len(params.Splits) > 0 {
		txn.Splits = toSplits(id, params.Splits)
		if err := txn.ValidateSplits(); err != nil {
			return nil, err
		}
	} else {
		txn.Splits = []Split{{TransactionID: id, CategoryID: UncategorizedID, Amount: params.Amount}}
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if params.Payee != "" {
			p, err := s.payees.Resolve(ctx, params.Payee, params.Description, suggest)
			if err != nil {
				return err
			}
			if p != nil {
				txn.PayeeID = &p.ID
			}
		}
		return s.repo.Create(ctx, txn)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return txn, nil
}

// GetTransaction retrieves a transaction with its splits
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByAccount retrieves all transactions of an account
func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]*Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return s.repo.ListByAccount(ctx, accountID)
}

// Update applies params to a transaction. Splits, when given, replace the
// existing ones wholesale and must add up to the (possibly new) amount.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*Transaction, error) {
	var updated *Transaction
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		txn, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if params.Amount != nil {
			txn.Amount = *params.Amount
		}
		if params.Posted != nil {
			txn.Posted = *params.Posted
		}
		if params.TransactedAt != nil {
			txn.TransactedAt = params.TransactedAt
		}
		if params.Description != nil {
			txn.Description = *params.Description
		}
		if params.Memo != nil {
			txn.Memo = *params.Memo
		}
		replaceSplits := params.Splits != nil
		if replaceSplits {
			txn.Splits = toSplits(txn.ID, params.Splits)
		} else if params.Amount != nil && len(txn.Splits) == 1 {
			// A single split follows the amount.
			txn.Splits = []Split{{TransactionID: txn.ID, CategoryID: txn.Splits[0].CategoryID, Amount: txn.Amount}}
			replaceSplits = true
		}
		if err := txn.ValidateSplits(); err != nil {
			return err
		}

		if params.Payee != nil && *params.Payee != "" {
			p, err := s.payees.Resolve(ctx, *params.Payee, txn.Description, nil)
			if err != nil {
				return err
			}
			if p != nil {
				txn.PayeeID = &p.ID
			}
		}

		txn.ContentHash = HashOf(txn)
		if err := s.repo.Update(ctx, txn); err != nil {
			return err
		}
		if replaceSplits {
			if err := s.repo.ReplaceSplits(ctx, txn.ID, txn.Splits); err != nil {
				return err
			}
		}
		updated = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a transaction and its splits
func (s *Service) Delete(ctx context.Context, id string) error {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check transaction: %w", err)
	}
	if !exists {
		return ErrTransactionNotFound
	}
	return s.repo.Delete(ctx, id)
}
