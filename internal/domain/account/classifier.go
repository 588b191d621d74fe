package account

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ClassifyInput is what the classifier looks at for one account.
type ClassifyInput struct {
	Name             string
	HasHoldings      bool
	Balance          *decimal.Decimal
	AvailableBalance *decimal.Decimal
}

var (
	investmentKeywords = []string{
		"brokerage", "investment", "401k", "403b", "roth", "ira", "retirement",
		"portfolio", "trading", "stock plan", "etrade", "robinhood", "schwab",
		"fidelity", "vanguard", "merrill", "td ameritrade", "fund", "mutual",
		"equity", "securities",
	}
	creditKeywords = []string{"card", "credit", "visa", "mastercard", "amex", "discover"}
	bankKeywords   = []string{"checking", "savings", "spending", "deposit", "dda", "mma", "money market"}
)

type classifierRule struct {
	name   string
	match  func(in ClassifyInput) bool
	result Type
}

// First match wins.
var classifierRules = []classifierRule{
	{
		name:   "holdings",
		match:  func(in ClassifyInput) bool { return in.HasHoldings },
		result: TypeInvestment,
	},
	{
		name:   "investment-keyword",
		match:  nameContainsAny(investmentKeywords),
		result: TypeInvestment,
	},
	{
		name:   "credit-keyword",
		match:  nameContainsAny(creditKeywords),
		result: TypeCreditCard,
	},
	{
		name:   "bank-keyword",
		match:  nameContainsAny(bankKeywords),
		result: TypeBank,
	},
	{
		name: "non-positive-balance",
		match: func(in ClassifyInput) bool {
			return in.Balance != nil && in.AvailableBalance == nil && !in.Balance.IsPositive()
		},
		result: TypeCreditCard,
	},
	{
		name: "non-negative-balance",
		match: func(in ClassifyInput) bool {
			if in.Balance == nil || in.Balance.IsNegative() {
				return false
			}
			return in.AvailableBalance == nil || !in.AvailableBalance.IsNegative()
		},
		result: TypeBank,
	},
}

func nameContainsAny(keywords []string) func(in ClassifyInput) bool {
	return func(in ClassifyInput) bool {
		name := strings.ToLower(in.Name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
		return false
	}
}

// Classify infers an account type. It returns nil when no rule has a signal.
func Classify(in ClassifyInput) *Type {
	for _, r := range classifierRules {
		if r.match(in) {
			t := r.result
			return &t
		}
	}
	return nil
}

// classifyRule names the rule that decided, for tests and logs.
func classifyRule(in ClassifyInput) string {
	for _, r := range classifierRules {
		if r.match(in) {
			return r.name
		}
	}
	return ""
}
