package simplefin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/account"
	"finsync/internal/domain/payee"
	"finsync/internal/domain/transaction"
)

// memStore is an in-memory stand-in for every repository the sync needs.
type memStore struct {
	mu sync.Mutex

	configs  map[int64]*SyncConfig
	nextCfg  int64
	runs     map[string]*SyncRun
	runOrder []string

	orgs     map[string]*account.Org
	accounts map[string]*account.Account
	balances map[string]*account.Balance
	holdings map[string]*account.Holding
	txns     map[string]*transaction.Transaction
	payees   map[string]int64

	suggested []string
}

func newMemStore() *memStore {
	return &memStore{
		configs:  make(map[int64]*SyncConfig),
		runs:     make(map[string]*SyncRun),
		orgs:     make(map[string]*account.Org),
		accounts: make(map[string]*account.Account),
		balances: make(map[string]*account.Balance),
		holdings: make(map[string]*account.Holding),
		txns:     make(map[string]*transaction.Transaction),
		payees:   make(map[string]int64),
	}
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// configs

func (m *memStore) GetConfig(id int64) *SyncConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.configs[id]
	return &c
}

type configRepo struct{ *memStore }

func (r configRepo) GetByID(ctx context.Context, id int64) (*SyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return nil, ErrConfigNotFound
	}
	cp := *c
	return &cp, nil
}

func (r configRepo) List(ctx context.Context) ([]*SyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SyncConfig
	for _, c := range r.configs {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r configRepo) ListActive(ctx context.Context) ([]*SyncConfig, error) {
	all, _ := r.List(ctx)
	var out []*SyncConfig
	for _, c := range all {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r configRepo) Create(ctx context.Context, cfg *SyncConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextCfg++
	cfg.ID = r.nextCfg
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r configRepo) Update(ctx context.Context, cfg *SyncConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[cfg.ID]; !ok {
		return ErrConfigNotFound
	}
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r configRepo) SetCredentials(ctx context.Context, id int64, creds Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[id].Credentials = creds
	return nil
}

func (r configRepo) SetErrors(ctx context.Context, id int64, errs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[id].Errors = errs
	return nil
}

func (r configRepo) SetLastSync(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[id].LastSync = &at
	return nil
}

func (r configRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, id)
	return nil
}

// runs

type runRepo struct{ *memStore }

func (r runRepo) Create(ctx context.Context, run *SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	r.runOrder = append(r.runOrder, run.ID)
	return nil
}

func (r runRepo) Finish(ctx context.Context, run *SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r runRepo) GetByID(ctx context.Context, id string) (*SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (r runRepo) ListByConfig(ctx context.Context, configID int64, limit int) ([]*SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SyncRun
	for i := len(r.runOrder) - 1; i >= 0 && len(out) < limit; i-- {
		if run := r.runs[r.runOrder[i]]; run.SyncConfigID == configID {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

// accounts, orgs, balances, holdings

func (m *memStore) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[id]
	return ok, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) Upsert(ctx context.Context, p account.UpsertParams) (*account.Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[p.ID]
	if !ok {
		a = &account.Account{ID: p.ID}
		m.accounts[p.ID] = a
	}
	a.Name = p.Name
	a.Currency = p.Currency
	org := p.OrgID
	a.OrgID = &org
	if a.Type == nil {
		a.Type = p.Type
	}
	cp := *a
	return &cp, !ok, nil
}

func (m *memStore) addAccount(id, name string, t *account.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org := "org-1"
	m.accounts[id] = &account.Account{ID: id, Name: name, Currency: "USD", OrgID: &org, Type: t}
}

type orgRepo struct{ *memStore }

func (r orgRepo) Upsert(ctx context.Context, org *account.Org) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *org
	r.orgs[org.ID] = &cp
	return nil
}

type balanceRepo struct{ *memStore }

func balanceKey(accountID string, date time.Time) string {
	return fmt.Sprintf("%s|%d", accountID, date.Unix())
}

func (r balanceRepo) Exists(ctx context.Context, accountID string, date time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.balances[balanceKey(accountID, date)]
	return ok, nil
}

func (r balanceRepo) Create(ctx context.Context, b *account.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[balanceKey(b.AccountID, b.BalanceDate)] = b
	return nil
}

func (r balanceRepo) Latest(ctx context.Context, accountID string) (*account.Balance, error) {
	return nil, nil
}

type holdingRepo struct{ *memStore }

func (r holdingRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.holdings[id]
	return ok, nil
}

func (r holdingRepo) Create(ctx context.Context, h *account.Holding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holdings[h.ID] = h
	return nil
}

func (r holdingRepo) CountByAccount(ctx context.Context, accountID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.holdings {
		if h.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (r holdingRepo) ReassignAll(ctx context.Context, from, to string) (int, error) {
	return 0, nil
}

// transactions

type txnRepo struct{ *memStore }

func (r txnRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.txns[id]
	return ok, nil
}

func (r txnRepo) ExistsByHash(ctx context.Context, accountID, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txns {
		if t.AccountID == accountID && t.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (r txnRepo) CreateWithSuggestion(ctx context.Context, p transaction.CreateParams, suggest payee.SuggestFunc) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &transaction.Transaction{
		ID:          p.ID,
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		Posted:      p.Posted,
		Description: p.Description,
		Splits:      []transaction.Split{{TransactionID: p.ID, Amount: p.Amount}},
	}
	t.ContentHash = transaction.HashOf(t)
	if name := payee.CleanName(payee.Normalize(p.Payee, p.Description)); name != "" {
		if _, ok := r.payees[name]; !ok {
			var cat int64
			if suggest != nil {
				r.mu.Unlock()
				s := suggest(ctx)
				r.mu.Lock()
				if s != nil {
					cat = *s
				}
			}
			r.payees[name] = cat
		}
	}
	r.txns[t.ID] = t
	return t, nil
}

func (m *memStore) txnCount(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.txns {
		if t.AccountID == accountID {
			n++
		}
	}
	return n
}

func (m *memStore) Suggest(ctx context.Context, description string) *int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggested = append(m.suggested, description)
	id := int64(99)
	return &id
}

type suggesterFunc func(ctx context.Context, description string) *int64

func (f suggesterFunc) SuggestForLoan(ctx context.Context, description string) *int64 {
	return f(ctx, description)
}

// fakeClient serves a fixed set of accounts, returning only the transactions
// posted inside each requested window.
type fakeClient struct {
	mu       sync.Mutex
	accounts []RemoteAccount
	errors   []string
	fetchErr error
	calls    [][2]time.Time

	ClaimFunc func(ctx context.Context, claimURL string) (string, error)
}

func (c *fakeClient) Fetch(ctx context.Context, creds Credentials, start, end time.Time) (*FetchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, [2]time.Time{start, end})
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}

	resp := &Response{Errors: c.errors}
	for _, a := range c.accounts {
		out := a
		out.Transactions = nil
		for _, t := range a.Transactions {
			posted := time.Unix(t.Posted, 0)
			if !posted.Before(start) && posted.Before(end) {
				out.Transactions = append(out.Transactions, t)
			}
		}
		resp.Accounts = append(resp.Accounts, out)
	}
	return &FetchResult{Response: resp, Raw: []byte(fmt.Sprintf(`{"accounts":%d}`, len(resp.Accounts)))}, nil
}

func (c *fakeClient) Claim(ctx context.Context, claimURL string) (string, error) {
	if c.ClaimFunc != nil {
		return c.ClaimFunc(ctx, claimURL)
	}
	return "", fmt.Errorf("claim not expected")
}

func (c *fakeClient) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// MockDuplicateChecker is a mock implementation of DuplicateChecker
type MockDuplicateChecker struct {
	IsDuplicateFunc func(ctx context.Context, accountID string) (bool, error)
}

func (m *MockDuplicateChecker) IsDuplicate(ctx context.Context, accountID string) (bool, error) {
	if m.IsDuplicateFunc != nil {
		return m.IsDuplicateFunc(ctx, accountID)
	}
	return false, nil
}

// MockNotifier records alerts
type MockNotifier struct {
	mu         sync.Mutex
	failures   []string
	duplicates []string
}

func (m *MockNotifier) SyncFailed(ctx context.Context, configID int64, configName, runID, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errMsg)
}

func (m *MockNotifier) DuplicateAccount(ctx context.Context, accountID, accountName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates = append(m.duplicates, accountID)
}

// fixtures

func remoteTxn(id string, posted time.Time, amount, desc string) RemoteTransaction {
	return RemoteTransaction{
		ID:          id,
		Posted:      posted.Unix(),
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Payee:       desc,
	}
}

func remoteAccount(id, name string, txns ...RemoteTransaction) RemoteAccount {
	bal := decimal.RequireFromString("100.00")
	return RemoteAccount{
		ID:           id,
		Name:         name,
		Currency:     "USD",
		Org:          &RemoteOrg{ID: "org-1", Name: "First Bank", Domain: "firstbank.example"},
		Balance:      &bal,
		BalanceDate:  []byte(`1718000000`),
		Transactions: txns,
	}
}

func newTestIngestor(m *memStore, suggester LoanSuggester) *Ingestor {
	if suggester == nil {
		suggester = suggesterFunc(m.Suggest)
	}
	return NewIngestor(m, orgRepo{m}, balanceRepo{m}, holdingRepo{m}, txnRepo{m}, txnRepo{m}, suggester, m)
}

type orchestratorFixture struct {
	store      *memStore
	client     *fakeClient
	duplicates *MockDuplicateChecker
	notifier   *MockNotifier
	raw        *RawResponseCache
	orch       *Orchestrator
	cfg        *SyncConfig
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newOrchestratorFixture(maxMonths int, accounts ...RemoteAccount) *orchestratorFixture {
	f := &orchestratorFixture{
		store:      newMemStore(),
		client:     &fakeClient{accounts: accounts},
		duplicates: &MockDuplicateChecker{},
		notifier:   &MockNotifier{},
		raw:        NewRawResponseCache(5 * time.Minute),
	}
	configs := configRepo{f.store}
	f.orch = NewOrchestrator(OrchestratorDeps{
		Configs:    configs,
		Runs:       runRepo{f.store},
		Creds:      NewCredentialService(configs, f.client),
		Client:     f.client,
		Ingestor:   newTestIngestor(f.store, nil),
		Accounts:   f.store,
		Duplicates: f.duplicates,
		Notifier:   f.notifier,
		Raw:        f.raw,
		MaxMonths:  maxMonths,
	})
	f.orch.now = func() time.Time { return testNow }

	f.cfg = &SyncConfig{
		Name:         "main",
		ProviderName: ProviderSimpleFIN,
		Active:       true,
		Credentials:  Credentials{Username: "u", Password: "cA==", Endpoint: "https://bridge.example/accounts"},
	}
	_ = configs.Create(context.Background(), f.cfg)
	return f
}
