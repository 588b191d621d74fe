package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the kind of an account. A nil *Type means unclassified.
type Type string

const (
	TypeBank       Type = "bank"
	TypeCreditCard Type = "credit_card"
	TypeInvestment Type = "investment"
	TypeLoan       Type = "loan"
	TypeMortgage   Type = "mortgage"
)

var validTypes = map[Type]struct{}{
	TypeBank:       {},
	TypeCreditCard: {},
	TypeInvestment: {},
	TypeLoan:       {},
	TypeMortgage:   {},
}

// Domain errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidInput       = errors.New("invalid input")
)

// ParseType validates s as an account type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := validTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
	}
	return t, nil
}

// IsLoan reports whether payees on this account get loan categorization.
func (t Type) IsLoan() bool {
	return t == TypeLoan || t == TypeMortgage
}

// Org is the institution an account belongs to
type Org struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	SfinURL string `json:"sfinUrl,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Account represents a financial account domain entity
type Account struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	AltName   *string    `json:"altName,omitempty"`
	Currency  string     `json:"currency"`
	OrgID     *string    `json:"orgId,omitempty"`
	IsHidden  bool       `json:"isHidden"`
	Type      *Type      `json:"accountType,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// DisplayName is the user override when set, otherwise the provider name.
func (a *Account) DisplayName() string {
	if a.AltName != nil && *a.AltName != "" {
		return *a.AltName
	}
	return a.Name
}

// SameIdentity reports whether two accounts share org and name.
func (a *Account) SameIdentity(b *Account) bool {
	return a.Name == b.Name && orgKey(a.OrgID) == orgKey(b.OrgID)
}

func orgKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

// Details is an account with its org and latest balance (for API responses)
type Details struct {
	Account
	DisplayName string           `json:"displayName"`
	OrgName     string           `json:"orgName,omitempty"`
	OrgDomain   string           `json:"orgDomain,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	BalanceDate *time.Time       `json:"balanceDate,omitempty"`
}

// Balance is a point-in-time balance snapshot, unique per account and date
type Balance struct {
	ID               int64            `json:"id"`
	AccountID        string           `json:"accountId"`
	Balance          decimal.Decimal  `json:"balance"`
	AvailableBalance *decimal.Decimal `json:"availableBalance,omitempty"`
	BalanceDate      time.Time        `json:"balanceDate"`
}

// Holding is an investment position snapshot
type Holding struct {
	ID            string              `json:"id"`
	AccountID     string              `json:"accountId"`
	Created       time.Time           `json:"created"`
	Currency      string              `json:"currency"`
	CostBasis     decimal.NullDecimal `json:"costBasis"`
	Description   string              `json:"description,omitempty"`
	MarketValue   decimal.NullDecimal `json:"marketValue"`
	PurchasePrice decimal.NullDecimal `json:"purchasePrice"`
	Shares        decimal.NullDecimal `json:"shares"`
	Symbol        string              `json:"symbol,omitempty"`
}

// UpsertParams carries what a sync knows about an account.
// Type is only stored when the account has no type yet.
type UpsertParams struct {
	ID       string
	Name     string
	Currency string
	OrgID    string
	Type     *Type
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalidInput)
	}
	return nil
}

// UpdateParams contains parameters for a manual account edit
type UpdateParams struct {
	Name     *string
	AltName  *string
	Currency *string
	IsHidden *bool
	Type     *Type
}

// Validate validates the update parameters
func (p UpdateParams) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("%w: account name cannot be empty", ErrInvalidInput)
	}
	if p.Type != nil {
		if _, err := ParseType(string(*p.Type)); err != nil {
			return err
		}
	}
	return nil
}
