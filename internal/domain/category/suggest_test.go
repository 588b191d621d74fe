package category

import (
	"context"
	"testing"
)

// MockNameFinder implements NameFinder over a fixed name table
type MockNameFinder struct {
	ids   map[string]int64
	calls [][]string
}

func (m *MockNameFinder) FindIDByNames(ctx context.Context, names ...string) *int64 {
	m.calls = append(m.calls, names)
	for _, n := range names {
		if id, ok := m.ids[n]; ok {
			return &id
		}
	}
	return nil
}

func TestSuggestForLoan(t *testing.T) {
	full := map[string]int64{
		"Property Tax":   10,
		"Taxes":          11,
		"Home Insurance": 20,
		"Insurance":      21,
		"Transfer":       30,
	}

	tests := []struct {
		name        string
		ids         map[string]int64
		description string
		want        *int64
	}{
		{"empty description", full, "", nil},
		{"property tax", full, "COUNTY TAX DISBURSEMENT", ptr(10)},
		{"property tax falls back to taxes", map[string]int64{"Taxes": 11, "Transfer": 30}, "Real Estate Tax", ptr(11)},
		{"homeowner insurance", full, "Hazard policy payment", ptr(20)},
		{"insurance falls back", map[string]int64{"Insurance": 21, "Transfer": 30}, "Homeowner premium", ptr(21)},
		{"pmi", full, "Monthly PMI", ptr(21)},
		{"default transfer", full, "Payment - Thank you", ptr(30)},
		{"missing categories fall through to transfer", map[string]int64{"Transfer": 30}, "property tax", ptr(30)},
		{"transfer missing", map[string]int64{}, "Payment", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSuggester(&MockNameFinder{ids: tt.ids})
			got := s.SuggestForLoan(context.Background(), tt.description)

			switch {
			case tt.want == nil && got != nil:
				t.Errorf("SuggestForLoan(%q) = %d, want nil", tt.description, *got)
			case tt.want != nil && got == nil:
				t.Errorf("SuggestForLoan(%q) = nil, want %d", tt.description, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("SuggestForLoan(%q) = %d, want %d", tt.description, *got, *tt.want)
			}
		})
	}
}

func TestSuggestForLoan_RuleOrder(t *testing.T) {
	// "mortgage insurance" also contains "insurance", so the home insurance rule wins.
	finder := &MockNameFinder{ids: map[string]int64{"Home Insurance": 20, "Insurance": 21}}
	s := NewSuggester(finder)

	got := s.SuggestForLoan(context.Background(), "Mortgage Insurance Premium")
	if got == nil || *got != 20 {
		t.Fatalf("SuggestForLoan() = %v, want 20", got)
	}
	if len(finder.calls) != 1 || finder.calls[0][0] != "Home Insurance" {
		t.Errorf("lookups = %v, want a single Home Insurance lookup", finder.calls)
	}
}

func ptr(v int64) *int64 { return &v }
