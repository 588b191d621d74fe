package simplefin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Response is the account set returned by the aggregator.
type Response struct {
	Errors   []string        `json:"errors"`
	Accounts []RemoteAccount `json:"accounts"`
}

// RemoteOrg is the institution block of an account
type RemoteOrg struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	SfinURL string `json:"sfin-url"`
	Domain  string `json:"domain"`
}

// RemoteAccount is one account with the transactions and holdings of the requested range
type RemoteAccount struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Currency         string              `json:"currency"`
	Org              *RemoteOrg          `json:"org"`
	Balance          *decimal.Decimal    `json:"balance"`
	AvailableBalance *decimal.Decimal    `json:"available-balance"`
	BalanceDate      json.RawMessage     `json:"balance-date"`
	Transactions     []RemoteTransaction `json:"transactions"`
	Holdings         []RemoteHolding     `json:"holdings"`

	// Invalid is set when the record could not be decoded. Such accounts are skipped.
	Invalid string `json:"-"`
}

// UnmarshalJSON keeps one malformed account from failing the whole response.
// Malformed balances decode as nil.
func (a *RemoteAccount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	type plain RemoteAccount
	var raw struct {
		plain
		Balance          json.RawMessage `json:"balance"`
		AvailableBalance json.RawMessage `json:"available-balance"`
	}
	invalid, err := decodeRecord(data, &raw)
	if err != nil {
		return err
	}
	*a = RemoteAccount(raw.plain)
	a.Invalid = invalid
	a.Balance = optionalDecimal(raw.Balance)
	a.AvailableBalance = optionalDecimal(raw.AvailableBalance)
	return nil
}

// BalanceTime parses balance-date as epoch seconds. Numeric strings are
// accepted. ok is false when the field is missing, zero or malformed.
func (a RemoteAccount) BalanceTime() (t time.Time, ok bool) {
	secs := lenientEpoch(a.BalanceDate)
	if secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// RemoteTransaction is one transaction record
type RemoteTransaction struct {
	ID           string          `json:"id"`
	Posted       int64           `json:"posted"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Payee        string          `json:"payee"`
	Memo         string          `json:"memo"`
	TransactedAt int64           `json:"transacted_at"`
	Pending      bool            `json:"pending"`

	// Invalid is set when the record could not be decoded. Such transactions are skipped.
	Invalid string `json:"-"`
}

// UnmarshalJSON accepts numbers or numeric strings for posted, amount and
// transacted_at. A missing or empty amount is zero; a malformed one marks the
// record invalid. A malformed posted date decodes as 0.
func (t *RemoteTransaction) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	type plain RemoteTransaction
	var raw struct {
		plain
		Posted       json.RawMessage `json:"posted"`
		Amount       json.RawMessage `json:"amount"`
		TransactedAt json.RawMessage `json:"transacted_at"`
	}
	invalid, err := decodeRecord(data, &raw)
	if err != nil {
		return err
	}
	*t = RemoteTransaction(raw.plain)
	t.Posted = lenientEpoch(raw.Posted)
	t.TransactedAt = lenientEpoch(raw.TransactedAt)

	amount, _, err := lenientDecimal(raw.Amount)
	if err != nil && invalid == "" {
		invalid = fmt.Sprintf("malformed amount %s", raw.Amount)
	}
	t.Amount = amount
	t.Invalid = invalid
	return nil
}

// RemoteHolding is one investment position
type RemoteHolding struct {
	ID            string              `json:"id"`
	Created       int64               `json:"created"`
	Currency      string              `json:"currency"`
	CostBasis     decimal.NullDecimal `json:"cost_basis"`
	Description   string              `json:"description"`
	MarketValue   decimal.NullDecimal `json:"market_value"`
	PurchasePrice decimal.NullDecimal `json:"purchase_price"`
	Shares        decimal.NullDecimal `json:"shares"`
	Symbol        string              `json:"symbol"`

	// Invalid is set when the record could not be decoded. Such holdings are skipped.
	Invalid string `json:"-"`
}

// UnmarshalJSON treats malformed numeric fields as absent.
func (h *RemoteHolding) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	type plain RemoteHolding
	var raw struct {
		plain
		Created       json.RawMessage `json:"created"`
		CostBasis     json.RawMessage `json:"cost_basis"`
		MarketValue   json.RawMessage `json:"market_value"`
		PurchasePrice json.RawMessage `json:"purchase_price"`
		Shares        json.RawMessage `json:"shares"`
	}
	invalid, err := decodeRecord(data, &raw)
	if err != nil {
		return err
	}
	*h = RemoteHolding(raw.plain)
	h.Invalid = invalid
	h.Created = lenientEpoch(raw.Created)
	h.CostBasis = nullDecimal(raw.CostBasis)
	h.MarketValue = nullDecimal(raw.MarketValue)
	h.PurchasePrice = nullDecimal(raw.PurchasePrice)
	h.Shares = nullDecimal(raw.Shares)
	return nil
}

// FetchResult is a decoded response together with the bytes it was decoded from.
type FetchResult struct {
	Response *Response
	Raw      []byte
}

// RemoteClient talks to the aggregator.
type RemoteClient interface {
	// Fetch requests accounts with activity between start and end.
	Fetch(ctx context.Context, creds Credentials, start, end time.Time) (*FetchResult, error)

	// Claim exchanges a claim URL for an access URL. A claim URL works once.
	Claim(ctx context.Context, claimURL string) (string, error)
}

func epochTime(secs int64) *time.Time {
	if secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

// decodeRecord unmarshals one record. A type mismatch in any field is
// returned as a description instead of an error, so the caller can skip the
// record; the fields that did decode are kept.
func decodeRecord(data []byte, v any) (invalid string, err error) {
	err = json.Unmarshal(data, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q: cannot use %s as %s", typeErr.Field, typeErr.Value, typeErr.Type), nil
	}
	return "", err
}

func scalarText(raw json.RawMessage) string {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "null" {
		return ""
	}
	return s
}

// lenientDecimal parses a JSON number or numeric string. Missing, null and
// empty values give zero with ok false.
func lenientDecimal(raw json.RawMessage) (d decimal.Decimal, ok bool, err error) {
	s := scalarText(raw)
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

func optionalDecimal(raw json.RawMessage) *decimal.Decimal {
	d, ok, err := lenientDecimal(raw)
	if err != nil || !ok {
		return nil
	}
	return &d
}

func nullDecimal(raw json.RawMessage) decimal.NullDecimal {
	d, ok, err := lenientDecimal(raw)
	if err != nil || !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// lenientEpoch parses epoch seconds from a number or numeric string.
// Anything else is 0.
func lenientEpoch(raw json.RawMessage) int64 {
	s := scalarText(raw)
	if s == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return secs
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
