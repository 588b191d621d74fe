package account

import (
	"context"
	"errors"
	"testing"
	"time"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	GetByIDFunc          func(ctx context.Context, id string) (*Account, error)
	ExistsFunc           func(ctx context.Context, id string) (bool, error)
	ListFunc             func(ctx context.Context, includeHidden bool) ([]*Details, error)
	ListAllFunc          func(ctx context.Context) ([]*Account, error)
	ListUnclassifiedFunc func(ctx context.Context) ([]*Account, error)
	UpsertFunc           func(ctx context.Context, params UpsertParams) (*Account, bool, error)
	UpdateFunc           func(ctx context.Context, id string, params UpdateParams) (*Account, error)
	SetTypeFunc          func(ctx context.Context, id string, t Type) error
	DeleteFunc           func(ctx context.Context, id string) error
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrAccountNotFound
}

func (m *MockRepository) Exists(ctx context.Context, id string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	return false, nil
}

func (m *MockRepository) List(ctx context.Context, includeHidden bool) ([]*Details, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, includeHidden)
	}
	return nil, nil
}

func (m *MockRepository) ListAll(ctx context.Context) ([]*Account, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return nil, nil
}

func (m *MockRepository) ListUnclassified(ctx context.Context) ([]*Account, error) {
	if m.ListUnclassifiedFunc != nil {
		return m.ListUnclassifiedFunc(ctx)
	}
	return nil, nil
}

func (m *MockRepository) Upsert(ctx context.Context, params UpsertParams) (*Account, bool, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return nil, false, nil
}

func (m *MockRepository) Update(ctx context.Context, id string, params UpdateParams) (*Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *MockRepository) SetType(ctx context.Context, id string, t Type) error {
	if m.SetTypeFunc != nil {
		return m.SetTypeFunc(ctx, id, t)
	}
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockBalanceRepository implements BalanceRepository
type MockBalanceRepository struct {
	LatestFunc func(ctx context.Context, accountID string) (*Balance, error)
}

func (m *MockBalanceRepository) Exists(ctx context.Context, accountID string, date time.Time) (bool, error) {
	return false, nil
}

func (m *MockBalanceRepository) Create(ctx context.Context, b *Balance) error {
	return nil
}

func (m *MockBalanceRepository) Latest(ctx context.Context, accountID string) (*Balance, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, accountID)
	}
	return nil, nil
}

// MockHoldingRepository implements HoldingRepository
type MockHoldingRepository struct {
	CountByAccountFunc func(ctx context.Context, accountID string) (int, error)
}

func (m *MockHoldingRepository) Exists(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *MockHoldingRepository) Create(ctx context.Context, h *Holding) error {
	return nil
}

func (m *MockHoldingRepository) CountByAccount(ctx context.Context, accountID string) (int, error) {
	if m.CountByAccountFunc != nil {
		return m.CountByAccountFunc(ctx, accountID)
	}
	return 0, nil
}

func (m *MockHoldingRepository) ReassignAll(ctx context.Context, fromAccountID, toAccountID string) (int, error) {
	return 0, nil
}

// MockLoanPayeeStore implements LoanPayeeStore and records category updates
type MockLoanPayeeStore struct {
	uses    []PayeeUse
	updates map[int64]int64
}

func (m *MockLoanPayeeStore) ListUncategorizedByAccount(ctx context.Context, accountID string) ([]PayeeUse, error) {
	return m.uses, nil
}

func (m *MockLoanPayeeStore) UpdateCategory(ctx context.Context, payeeID, categoryID int64) error {
	if m.updates == nil {
		m.updates = make(map[int64]int64)
	}
	m.updates[payeeID] = categoryID
	return nil
}

// MockLoanSuggester implements LoanSuggester
type MockLoanSuggester struct {
	SuggestFunc func(ctx context.Context, description string) *int64
}

func (m *MockLoanSuggester) SuggestForLoan(ctx context.Context, description string) *int64 {
	if m.SuggestFunc != nil {
		return m.SuggestFunc(ctx, description)
	}
	return nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(repo *MockRepository, payees *MockLoanPayeeStore, suggester *MockLoanSuggester) *Service {
	return NewService(repo, &MockBalanceRepository{}, &MockHoldingRepository{}, payees, suggester, passthroughTx{})
}

func TestUpdate_TypeChangeToLoanRecategorizes(t *testing.T) {
	stored := &Account{ID: "acc-1", Name: "Home Loan", Type: typePtr(TypeBank)}
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
			cp := *stored
			return &cp, nil
		},
		UpdateFunc: func(ctx context.Context, id string, params UpdateParams) (*Account, error) {
			cp := *stored
			cp.Type = params.Type
			return &cp, nil
		},
	}
	payees := &MockLoanPayeeStore{uses: []PayeeUse{
		{PayeeID: 1, PayeeName: "County Treasurer", Description: "COUNTY TAX DISBURSEMENT"},
		{PayeeID: 2, PayeeName: "Servicer", Description: "Payment"},
		{PayeeID: 3, PayeeName: "Unknown", Description: ""},
	}}
	suggester := &MockLoanSuggester{
		SuggestFunc: func(ctx context.Context, description string) *int64 {
			switch description {
			case "COUNTY TAX DISBURSEMENT":
				v := int64(10)
				return &v
			case "Payment":
				v := int64(30)
				return &v
			}
			return nil
		},
	}

	svc := newTestService(repo, payees, suggester)
	mortgage := TypeMortgage
	got, err := svc.Update(context.Background(), "acc-1", UpdateParams{Type: &mortgage})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Type == nil || *got.Type != TypeMortgage {
		t.Errorf("Type = %v, want mortgage", deref(got.Type))
	}

	want := map[int64]int64{1: 10, 2: 30}
	if len(payees.updates) != len(want) {
		t.Fatalf("updates = %v, want %v", payees.updates, want)
	}
	for id, cat := range want {
		if payees.updates[id] != cat {
			t.Errorf("payee %d category = %d, want %d", id, payees.updates[id], cat)
		}
	}
}

func TestUpdate_NoCascade(t *testing.T) {
	tests := []struct {
		name    string
		current *Type
		newType *Type
	}{
		{"already loan", typePtr(TypeLoan), typePtr(TypeLoan)},
		{"changed to bank", typePtr(TypeLoan), typePtr(TypeBank)},
		{"type untouched", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{
				GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
					return &Account{ID: id, Type: tt.current}, nil
				},
				UpdateFunc: func(ctx context.Context, id string, params UpdateParams) (*Account, error) {
					return &Account{ID: id, Type: params.Type}, nil
				},
			}
			payees := &MockLoanPayeeStore{uses: []PayeeUse{{PayeeID: 1, Description: "Payment"}}}
			suggester := &MockLoanSuggester{
				SuggestFunc: func(ctx context.Context, description string) *int64 {
					t.Error("suggester should not be called")
					return nil
				},
			}

			svc := newTestService(repo, payees, suggester)
			if _, err := svc.Update(context.Background(), "acc-1", UpdateParams{Type: tt.newType}); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if len(payees.updates) != 0 {
				t.Errorf("updates = %v, want none", payees.updates)
			}
		})
	}
}

func TestUpdate_Validation(t *testing.T) {
	svc := newTestService(&MockRepository{}, &MockLoanPayeeStore{}, &MockLoanSuggester{})

	bogus := Type("checking")
	if _, err := svc.Update(context.Background(), "acc-1", UpdateParams{Type: &bogus}); !errors.Is(err, ErrInvalidAccountType) {
		t.Errorf("Update() error = %v, want ErrInvalidAccountType", err)
	}

	empty := ""
	if _, err := svc.Update(context.Background(), "acc-1", UpdateParams{Name: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Update() error = %v, want ErrInvalidInput", err)
	}

	if _, err := svc.Update(context.Background(), "missing", UpdateParams{}); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Update() error = %v, want ErrAccountNotFound", err)
	}
}

func TestClassifyUnset(t *testing.T) {
	var set = map[string]Type{}
	repo := &MockRepository{
		ListUnclassifiedFunc: func(ctx context.Context) ([]*Account, error) {
			return []*Account{
				{ID: "brokerage", Name: "Joint Account"},
				{ID: "card", Name: "Account 9911"},
				{ID: "mystery", Name: "Account 0001"},
			}, nil
		},
		SetTypeFunc: func(ctx context.Context, id string, t Type) error {
			set[id] = t
			return nil
		},
	}
	holdings := &MockHoldingRepository{
		CountByAccountFunc: func(ctx context.Context, accountID string) (int, error) {
			if accountID == "brokerage" {
				return 3, nil
			}
			return 0, nil
		},
	}
	balances := &MockBalanceRepository{
		LatestFunc: func(ctx context.Context, accountID string) (*Balance, error) {
			if accountID == "card" {
				return &Balance{AccountID: accountID, Balance: *d("-42.00")}, nil
			}
			return nil, nil
		},
	}

	svc := NewService(repo, balances, holdings, &MockLoanPayeeStore{}, &MockLoanSuggester{}, passthroughTx{})
	n, err := svc.ClassifyUnset(context.Background())
	if err != nil {
		t.Fatalf("ClassifyUnset() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ClassifyUnset() = %d, want 2", n)
	}
	if set["brokerage"] != TypeInvestment || set["card"] != TypeCreditCard {
		t.Errorf("types = %v", set)
	}
	if _, ok := set["mystery"]; ok {
		t.Error("account without signal should stay unclassified")
	}
}

func TestDeleteAccount_NotFound(t *testing.T) {
	svc := newTestService(&MockRepository{}, &MockLoanPayeeStore{}, &MockLoanSuggester{})
	if err := svc.DeleteAccount(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("DeleteAccount() error = %v, want ErrAccountNotFound", err)
	}
}
