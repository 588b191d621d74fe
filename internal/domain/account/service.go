package account

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// LoanSuggester proposes a category for a payee on a loan account.
type LoanSuggester interface {
	SuggestForLoan(ctx context.Context, description string) *int64
}

// Service contains the business logic for account operations
type Service struct {
	repo      Repository
	balances  BalanceRepository
	holdings  HoldingRepository
	payees    LoanPayeeStore
	suggester LoanSuggester
	tx        TxRunner
}

// NewService creates a new account service
func NewService(repo Repository, balances BalanceRepository, holdings HoldingRepository, payees LoanPayeeStore, suggester LoanSuggester, tx TxRunner) *Service {
	return &Service{
		repo:      repo,
		balances:  balances,
		holdings:  holdings,
		payees:    payees,
		suggester: suggester,
		tx:        tx,
	}
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// ListAccounts returns accounts with their latest balance
func (s *Service) ListAccounts(ctx context.Context, includeHidden bool) ([]*Details, error) {
	return s.repo.List(ctx, includeHidden)
}

// Exists checks if an account exists
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// DeleteAccount deletes an account and everything hanging off it
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return ErrAccountNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Update applies a manual edit. When the type changes to loan or mortgage,
// payees on the account that are still uncategorized get a loan suggestion.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var updated *Account
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		updated, err = s.repo.Update(ctx, id, params)
		if err != nil {
			return err
		}

		if params.Type != nil && params.Type.IsLoan() && !sameType(existing.Type, params.Type) {
			if _, err := s.RecategorizeLoanPayees(ctx, updated); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func sameType(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RecategorizeLoanPayees applies the loan suggestion once to every payee on the
// account that is still uncategorized. Payees a user already categorized are
// left alone. Returns how many payees changed.
func (s *Service) RecategorizeLoanPayees(ctx context.Context, acct *Account) (int, error) {
	uses, err := s.payees.ListUncategorizedByAccount(ctx, acct.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list uncategorized payees: %w", err)
	}

	updated := 0
	for _, u := range uses {
		categoryID := s.suggester.SuggestForLoan(ctx, u.Description)
		if categoryID == nil {
			continue
		}
		if err := s.payees.UpdateCategory(ctx, u.PayeeID, *categoryID); err != nil {
			return updated, fmt.Errorf("failed to update payee %d: %w", u.PayeeID, err)
		}
		log.Printf("Account %s: payee %q categorized as %d", acct.ID, u.PayeeName, *categoryID)
		updated++
	}

	if updated > 0 {
		log.Printf("Account %s: re-categorized %d payee(s) after type change", acct.ID, updated)
	}
	return updated, nil
}

// ClassifyUnset runs the classifier over every account without a type, using
// stored holdings and the latest balance. Returns how many accounts got a type.
func (s *Service) ClassifyUnset(ctx context.Context) (int, error) {
	accounts, err := s.repo.ListUnclassified(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unclassified accounts: %w", err)
	}

	changed := 0
	for _, acct := range accounts {
		in, err := s.classifyInput(ctx, acct)
		if err != nil {
			return changed, err
		}
		t := Classify(in)
		if t == nil {
			continue
		}
		if err := s.repo.SetType(ctx, acct.ID, *t); err != nil {
			return changed, fmt.Errorf("failed to set type for account %s: %w", acct.ID, err)
		}
		log.Printf("Account %s: classified as %s (%s)", acct.ID, *t, classifyRule(in))
		changed++
	}
	return changed, nil
}

func (s *Service) classifyInput(ctx context.Context, acct *Account) (ClassifyInput, error) {
	in := ClassifyInput{Name: acct.Name}

	n, err := s.holdings.CountByAccount(ctx, acct.ID)
	if err != nil {
		return in, fmt.Errorf("failed to count holdings: %w", err)
	}
	in.HasHoldings = n > 0

	latest, err := s.balances.Latest(ctx, acct.ID)
	if err != nil {
		return in, fmt.Errorf("failed to get latest balance: %w", err)
	}
	if latest != nil {
		in.Balance = &latest.Balance
		in.AvailableBalance = latest.AvailableBalance
	}
	return in, nil
}
