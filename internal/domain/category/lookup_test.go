package category

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// MockRepository implements Repository for testing
type MockRepository struct {
	ListFunc         func(ctx context.Context) ([]*Category, error)
	FindIDByNameFunc func(ctx context.Context, name string) (*int64, error)
	findCalls        int
}

func (m *MockRepository) List(ctx context.Context) ([]*Category, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *MockRepository) FindIDByName(ctx context.Context, name string) (*int64, error) {
	m.findCalls++
	if m.FindIDByNameFunc != nil {
		return m.FindIDByNameFunc(ctx, name)
	}
	return nil, nil
}

func TestLookup_FindIDByNames(t *testing.T) {
	repo := &MockRepository{
		FindIDByNameFunc: func(ctx context.Context, name string) (*int64, error) {
			if strings.EqualFold(name, "Taxes") {
				return ptr(11), nil
			}
			return nil, nil
		},
	}
	l, err := NewLookup(repo, time.Minute)
	if err != nil {
		t.Fatalf("NewLookup() error = %v", err)
	}
	defer l.Close()

	got := l.FindIDByNames(context.Background(), "Property Tax", "Taxes")
	if got == nil || *got != 11 {
		t.Fatalf("FindIDByNames() = %v, want 11", got)
	}
	l.cache.Wait()

	calls := repo.findCalls
	got = l.FindIDByNames(context.Background(), "property tax", "TAXES")
	if got == nil || *got != 11 {
		t.Fatalf("cached FindIDByNames() = %v, want 11", got)
	}
	if repo.findCalls != calls {
		t.Errorf("repository called %d more times, want cached answers", repo.findCalls-calls)
	}
}

func TestLookup_ErrorIsMiss(t *testing.T) {
	repo := &MockRepository{
		FindIDByNameFunc: func(ctx context.Context, name string) (*int64, error) {
			if name == "Broken" {
				return nil, errors.New("connection reset")
			}
			return ptr(30), nil
		},
	}
	l, err := NewLookup(repo, time.Minute)
	if err != nil {
		t.Fatalf("NewLookup() error = %v", err)
	}
	defer l.Close()

	got := l.FindIDByNames(context.Background(), "Broken", "Transfer")
	if got == nil || *got != 30 {
		t.Errorf("FindIDByNames() = %v, want 30", got)
	}
}
