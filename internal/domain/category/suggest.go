package category

import (
	"context"
	"log"
	"strings"
)

// NameFinder resolves the first existing category among names.
type NameFinder interface {
	FindIDByNames(ctx context.Context, names ...string) *int64
}

type loanRule struct {
	keywords   []string
	categories []string
}

// Evaluated in order, first match wins. A payment that matches none of them
// is treated as a transfer from the paying account.
var loanRules = []loanRule{
	{
		keywords:   []string{"property tax", "tax disbursement", "county tax", "real estate tax"},
		categories: []string{"Property Tax", "Taxes"},
	},
	{
		keywords:   []string{"insurance", "homeowner", "hazard", "home insurance"},
		categories: []string{"Home Insurance", "Insurance"},
	},
	{
		keywords:   []string{"pmi", "mortgage insurance"},
		categories: []string{"Insurance"},
	},
}

const transferCategory = "Transfer"

// Suggester proposes categories for payees first seen on loan accounts.
type Suggester struct {
	names NameFinder
}

// NewSuggester creates a new loan category suggester
func NewSuggester(names NameFinder) *Suggester {
	return &Suggester{names: names}
}

// SuggestForLoan returns the category a new payee on a loan or mortgage
// account should start with, or nil when there is nothing to suggest.
// A matching rule whose categories do not exist falls through to the next one.
func (s *Suggester) SuggestForLoan(ctx context.Context, description string) *int64 {
	if description == "" {
		return nil
	}

	desc := strings.ToLower(description)
	for _, r := range loanRules {
		if !r.matches(desc) {
			continue
		}
		if id := s.names.FindIDByNames(ctx, r.categories...); id != nil {
			return id
		}
	}

	id := s.names.FindIDByNames(ctx, transferCategory)
	if id == nil {
		log.Printf("Loan categorization: %q category not found, leaving payee uncategorized", transferCategory)
	}
	return id
}

func (r loanRule) matches(lowerDesc string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lowerDesc, kw) {
			return true
		}
	}
	return false
}
