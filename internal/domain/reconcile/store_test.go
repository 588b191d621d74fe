package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
)

// memStore is an in-memory AccountStore, TransactionStore, HoldingMover and
// TxRunner. RunInTx restores a snapshot when fn fails.
type memStore struct {
	accounts map[string]*account.Account
	txns     map[string]*transaction.Transaction
	holdings map[string]string // holding id -> account id

	failDeleteAccount bool

	// account ids passed to ListByAccount and ListRecentByAccount
	fullLoads, recentLoads []string
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*account.Account),
		txns:     make(map[string]*transaction.Transaction),
		holdings: make(map[string]string),
	}
}

func (s *memStore) addAccount(id, orgID, name string, created *time.Time) *account.Account {
	a := &account.Account{ID: id, Name: name, OrgID: &orgID, CreatedAt: created}
	s.accounts[id] = a
	return a
}

func (s *memStore) addTxn(id, accountID string, posted time.Time, amount, desc string, categoryID int64, payeeID *int64) {
	amt := decimal.RequireFromString(amount)
	s.txns[id] = &transaction.Transaction{
		ID:          id,
		AccountID:   accountID,
		Amount:      amt,
		Posted:      posted,
		Description: desc,
		PayeeID:     payeeID,
		Splits:      []transaction.Split{{TransactionID: id, CategoryID: categoryID, Amount: amt}},
	}
}

func (s *memStore) byAccount(accountID string) []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, t := range s.txns {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) GetByID(ctx context.Context, id string) (*account.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return a, nil
}

func (s *memStore) ListAll(ctx context.Context) ([]*account.Account, error) {
	out := make([]*account.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	if s.failDeleteAccount {
		return errors.New("delete failed")
	}
	delete(s.accounts, id)
	for tid, t := range s.txns {
		if t.AccountID == id {
			delete(s.txns, tid)
		}
	}
	return nil
}

func (s *memStore) ListByAccount(ctx context.Context, accountID string) ([]*transaction.Transaction, error) {
	s.fullLoads = append(s.fullLoads, accountID)
	return s.byAccount(accountID), nil
}

func (s *memStore) ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]*transaction.Transaction, error) {
	s.recentLoads = append(s.recentLoads, accountID)
	out := s.byAccount(accountID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Posted.After(out[j].Posted) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ReplaceSplits(ctx context.Context, transactionID string, splits []transaction.Split) error {
	s.txns[transactionID].Splits = append([]transaction.Split(nil), splits...)
	return nil
}

func (s *memStore) SetPayee(ctx context.Context, id string, payeeID *int64) error {
	s.txns[id].PayeeID = payeeID
	return nil
}

func (s *memStore) Reassign(ctx context.Context, id, accountID, contentHash string) error {
	s.txns[id].AccountID = accountID
	s.txns[id].ContentHash = contentHash
	return nil
}

// txnDelete is reached through the txnStore view.
func (s *memStore) txnDelete(id string) {
	delete(s.txns, id)
}

func (s *memStore) ReassignAll(ctx context.Context, fromAccountID, toAccountID string) (int, error) {
	n := 0
	for id, acc := range s.holdings {
		if acc == fromAccountID {
			s.holdings[id] = toAccountID
			n++
		}
	}
	return n, nil
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	accounts map[string]account.Account
	txns     map[string]transaction.Transaction
	holdings map[string]string
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts: make(map[string]account.Account),
		txns:     make(map[string]transaction.Transaction),
		holdings: make(map[string]string),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = *v
	}
	for k, v := range s.txns {
		cp := *v
		cp.Splits = append([]transaction.Split(nil), v.Splits...)
		snap.txns[k] = cp
	}
	for k, v := range s.holdings {
		snap.holdings[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.accounts = make(map[string]*account.Account)
	for k, v := range snap.accounts {
		s.accounts[k] = &v
	}
	s.txns = make(map[string]*transaction.Transaction)
	for k, v := range snap.txns {
		s.txns[k] = &v
	}
	s.holdings = snap.holdings
}

// txnStore adapts memStore to TransactionStore, whose Delete removes a
// transaction rather than an account.
type txnStore struct{ *memStore }

func (t txnStore) Delete(ctx context.Context, id string) error {
	t.txnDelete(id)
	return nil
}
