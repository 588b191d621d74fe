package payee

import (
	"context"
	"fmt"
	"log"
)

// SuggestFunc proposes a category for a payee that is about to be created.
// It returns nil when there is no suggestion.
type SuggestFunc func(ctx context.Context) *int64

// Service resolves raw payee strings to stored payees.
type Service struct {
	repo Repository
}

// NewService creates a new payee service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve normalizes rawName against description and finds or creates the payee.
// suggest is only consulted when a new payee is created. Returns nil for an empty name.
func (s *Service) Resolve(ctx context.Context, rawName, description string, suggest SuggestFunc) (*Payee, error) {
	name := CleanName(Normalize(rawName, description))
	if name == "" {
		return nil, nil
	}

	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payee: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	var categoryID int64
	if suggest != nil {
		if suggested := suggest(ctx); suggested != nil {
			categoryID = *suggested
		}
	}

	created, err := s.repo.Create(ctx, name, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to create payee: %w", err)
	}
	if categoryID != 0 {
		log.Printf("Created payee %q with suggested category %d", name, categoryID)
	}
	return created, nil
}
