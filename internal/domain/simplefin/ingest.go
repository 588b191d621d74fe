package simplefin

import (
	"context"
	"fmt"
	"log"
	"time"

	"finsync/internal/domain/account"
	"finsync/internal/domain/payee"
	"finsync/internal/domain/transaction"
)

// AccountStore is the account access needed while ingesting.
type AccountStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*account.Account, error)
	Upsert(ctx context.Context, params account.UpsertParams) (*account.Account, bool, error)
}

// TransactionLookup answers the two dedup questions.
type TransactionLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
	ExistsByHash(ctx context.Context, accountID, contentHash string) (bool, error)
}

// TransactionCreator creates a transaction with its payee and splits.
type TransactionCreator interface {
	CreateWithSuggestion(ctx context.Context, params transaction.CreateParams, suggest payee.SuggestFunc) (*transaction.Transaction, error)
}

// LoanSuggester proposes a category for a new payee on a loan account.
type LoanSuggester interface {
	SuggestForLoan(ctx context.Context, description string) *int64
}

// AccountResult is what ingesting one remote account produced.
type AccountResult struct {
	AccountID string
	Name      string
	// Seen counts transactions present in the payload, new or not.
	Seen         int
	Transactions int
	Holdings     int
}

// Ingestor persists remote records.
type Ingestor struct {
	accounts  AccountStore
	orgs      account.OrgRepository
	balances  account.BalanceRepository
	holdings  account.HoldingRepository
	lookup    TransactionLookup
	creator   TransactionCreator
	suggester LoanSuggester
	tx        TxRunner
}

// NewIngestor creates a new ingestor
func NewIngestor(
	accounts AccountStore,
	orgs account.OrgRepository,
	balances account.BalanceRepository,
	holdings account.HoldingRepository,
	lookup TransactionLookup,
	creator TransactionCreator,
	suggester LoanSuggester,
	tx TxRunner,
) *Ingestor {
	return &Ingestor{
		accounts:  accounts,
		orgs:      orgs,
		balances:  balances,
		holdings:  holdings,
		lookup:    lookup,
		creator:   creator,
		suggester: suggester,
		tx:        tx,
	}
}

// IngestAccount upserts the org, the account (classifying it while its type is
// unset), the balance snapshot, then new transactions and holdings, all in one
// database transaction. The record must carry an org and be well formed.
func (i *Ingestor) IngestAccount(ctx context.Context, rec RemoteAccount) (*AccountResult, error) {
	if rec.Org == nil {
		return nil, fmt.Errorf("%w: account %s has no org", ErrInvalidInput, rec.ID)
	}
	if rec.Invalid != "" {
		return nil, fmt.Errorf("%w: account %s is malformed: %s", ErrInvalidInput, rec.ID, rec.Invalid)
	}

	result := &AccountResult{AccountID: rec.ID, Name: rec.Name}
	err := i.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := i.orgs.Upsert(ctx, toOrg(rec.Org)); err != nil {
			return fmt.Errorf("failed to upsert org %s: %w", rec.Org.ID, err)
		}

		acct, err := i.upsertAccount(ctx, rec)
		if err != nil {
			return err
		}
		result.Name = acct.DisplayName()

		if err := i.storeBalance(ctx, rec); err != nil {
			return err
		}

		created, err := i.ingestTransactions(ctx, acct, rec.Transactions)
		if err != nil {
			return err
		}
		result.Seen = len(rec.Transactions)
		result.Transactions = created

		result.Holdings, err = i.ingestHoldings(ctx, rec.ID, rec.Holdings)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IngestTransactions stores new transactions for an existing account only.
// Used when backfilling a single account from a full payload.
func (i *Ingestor) IngestTransactions(ctx context.Context, accountID string, txns []RemoteTransaction) (int, error) {
	var created int
	err := i.tx.RunInTx(ctx, func(ctx context.Context) error {
		acct, err := i.accounts.GetByID(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to load account %s: %w", accountID, err)
		}
		created, err = i.ingestTransactions(ctx, acct, txns)
		return err
	})
	return created, err
}

func (i *Ingestor) upsertAccount(ctx context.Context, rec RemoteAccount) (*account.Account, error) {
	currency := rec.Currency
	if currency == "" {
		currency = "USD"
	}
	params := account.UpsertParams{
		ID:       rec.ID,
		Name:     rec.Name,
		Currency: currency,
		OrgID:    rec.Org.ID,
		Type: account.Classify(account.ClassifyInput{
			Name:             rec.Name,
			HasHoldings:      len(rec.Holdings) > 0,
			Balance:          rec.Balance,
			AvailableBalance: rec.AvailableBalance,
		}),
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	acct, created, err := i.accounts.Upsert(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account %s: %w", rec.ID, err)
	}
	if created {
		log.Printf("Account %s: created %q (type %s)", acct.ID, acct.Name, typeName(acct.Type))
	}
	return acct, nil
}

func typeName(t *account.Type) string {
	if t == nil {
		return "unclassified"
	}
	return string(*t)
}

// storeBalance records one snapshot per account and balance date. A missing
// or malformed date only skips the snapshot.
func (i *Ingestor) storeBalance(ctx context.Context, rec RemoteAccount) error {
	date, ok := rec.BalanceTime()
	if !ok {
		log.Printf("Warning: account %s has no usable balance-date (%s), skipping balance", rec.ID, string(rec.BalanceDate))
		return nil
	}
	if rec.Balance == nil {
		log.Printf("Warning: account %s has no balance, skipping balance", rec.ID)
		return nil
	}

	exists, err := i.balances.Exists(ctx, rec.ID, date)
	if err != nil {
		return fmt.Errorf("failed to check balance: %w", err)
	}
	if exists {
		return nil
	}
	return i.balances.Create(ctx, &account.Balance{
		AccountID:        rec.ID,
		Balance:          *rec.Balance,
		AvailableBalance: rec.AvailableBalance,
		BalanceDate:      date,
	})
}

// ingestTransactions skips records already stored under the same id or the
// same content hash and creates the rest. Returns how many were created.
func (i *Ingestor) ingestTransactions(ctx context.Context, acct *account.Account, txns []RemoteTransaction) (int, error) {
	loan := acct.Type != nil && acct.Type.IsLoan()

	created := 0
	for _, rt := range txns {
		if rt.Invalid != "" {
			log.Printf("Warning: account %s: skipping malformed transaction %q: %s", acct.ID, rt.ID, rt.Invalid)
			continue
		}
		if rt.ID == "" || rt.Posted <= 0 {
			log.Printf("Warning: account %s: skipping transaction without id or posted date (%q)", acct.ID, rt.ID)
			continue
		}

		exists, err := i.lookup.Exists(ctx, rt.ID)
		if err != nil {
			return created, fmt.Errorf("failed to check transaction %s: %w", rt.ID, err)
		}
		if exists {
			continue
		}

		posted := time.Unix(rt.Posted, 0).UTC()
		hash := transaction.ContentHash(acct.ID, &posted, rt.Amount, rt.Description)
		exists, err = i.lookup.ExistsByHash(ctx, acct.ID, hash)
		if err != nil {
			return created, fmt.Errorf("failed to check transaction hash: %w", err)
		}
		if exists {
			log.Printf("Account %s: skipping duplicate transaction %q (%s on %s)", acct.ID, truncate(rt.Description, 50), rt.Amount, posted.Format(time.DateOnly))
			continue
		}

		var suggest payee.SuggestFunc
		if loan {
			desc := rt.Description
			suggest = func(ctx context.Context) *int64 { return i.suggester.SuggestForLoan(ctx, desc) }
		}

		_, err = i.creator.CreateWithSuggestion(ctx, transaction.CreateParams{
			ID:           rt.ID,
			AccountID:    acct.ID,
			Amount:       rt.Amount,
			Posted:       posted,
			TransactedAt: epochTime(rt.TransactedAt),
			Payee:        rt.Payee,
			Description:  rt.Description,
			Memo:         rt.Memo,
			Pending:      rt.Pending,
		}, suggest)
		if err != nil {
			return created, fmt.Errorf("failed to create transaction %s: %w", rt.ID, err)
		}
		created++
	}
	return created, nil
}

func (i *Ingestor) ingestHoldings(ctx context.Context, accountID string, holdings []RemoteHolding) (int, error) {
	created := 0
	for _, rh := range holdings {
		if rh.ID == "" {
			continue
		}
		if rh.Invalid != "" {
			log.Printf("Warning: account %s: skipping malformed holding %q: %s", accountID, rh.ID, rh.Invalid)
			continue
		}
		exists, err := i.holdings.Exists(ctx, rh.ID)
		if err != nil {
			return created, fmt.Errorf("failed to check holding %s: %w", rh.ID, err)
		}
		if exists {
			continue
		}

		h := &account.Holding{
			ID:            rh.ID,
			AccountID:     accountID,
			Created:       time.Now().UTC(),
			Currency:      rh.Currency,
			CostBasis:     rh.CostBasis,
			Description:   rh.Description,
			MarketValue:   rh.MarketValue,
			PurchasePrice: rh.PurchasePrice,
			Shares:        rh.Shares,
			Symbol:        rh.Symbol,
		}
		if c := epochTime(rh.Created); c != nil {
			h.Created = *c
		}
		if h.Currency == "" {
			h.Currency = "USD"
		}
		if err := i.holdings.Create(ctx, h); err != nil {
			return created, fmt.Errorf("failed to create holding %s: %w", rh.ID, err)
		}
		created++
	}
	return created, nil
}

func toOrg(o *RemoteOrg) *account.Org {
	name := o.Name
	if name == "" {
		name = o.Domain
	}
	return &account.Org{ID: o.ID, Name: name, URL: o.URL, SfinURL: o.SfinURL, Domain: o.Domain}
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
