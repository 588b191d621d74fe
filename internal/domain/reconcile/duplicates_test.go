package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func acct(id string, created *time.Time) *account.Account {
	org := "org-1"
	return &account.Account{ID: id, Name: "Checking", OrgID: &org, CreatedAt: created}
}

func at(days int) *time.Time {
	t := base.AddDate(0, 0, days)
	return &t
}

// history builds n transactions on consecutive days ending at base.
func history(accountID string, n int) []*transaction.Transaction {
	out := make([]*transaction.Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &transaction.Transaction{
			ID:          fmt.Sprintf("%s-%d", accountID, i),
			AccountID:   accountID,
			Posted:      base.AddDate(0, 0, -i),
			Amount:      decimal.NewFromInt(int64(-10 - i)),
			Description: fmt.Sprintf("Purchase %d", i),
		})
	}
	return out
}

// copyOf re-issues the first n of src under another account with new ids.
func copyOf(accountID string, src []*transaction.Transaction, n int) []*transaction.Transaction {
	out := make([]*transaction.Transaction, 0, n)
	for i := 0; i < n && i < len(src); i++ {
		cp := *src[i]
		cp.ID = fmt.Sprintf("%s-copy-%d", accountID, i)
		cp.AccountID = accountID
		out = append(out, &cp)
	}
	return out
}

func TestFindDuplicates_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		matches int
		want    bool
	}{
		{"four of five match", 4, true},
		{"three of five match", 3, false},
		{"all match", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			older, newer := acct("a", at(-30)), acct("b", at(0))
			olderTxns := history("a", 5)
			newerTxns := copyOf("b", olderTxns, tt.matches)
			// Unmatched filler on the newer account.
			newerTxns = append(newerTxns, &transaction.Transaction{
				ID: "b-other", AccountID: "b", Posted: base, Amount: decimal.NewFromInt(99), Description: "Other",
			})

			groups := FindDuplicates(
				[]*account.Account{newer, older},
				map[string][]*transaction.Transaction{"a": olderTxns, "b": newerTxns},
				DefaultOptions(),
			)

			if !tt.want {
				assert.Empty(t, groups)
				return
			}
			require.Len(t, groups, 1)
			assert.Equal(t, "org-1", groups[0].OrgID)
			assert.Equal(t, "Checking", groups[0].Name)
			require.Len(t, groups[0].Accounts, 2)
			assert.Equal(t, "a", groups[0].Accounts[0].ID, "oldest account first")
		})
	}
}

func TestFindDuplicates_AmountFormattingIrrelevant(t *testing.T) {
	olderTxns := history("a", 5)
	newerTxns := copyOf("b", olderTxns, 5)
	for _, tx := range newerTxns {
		// Same value, different scale.
		tx.Amount = decimal.RequireFromString(tx.Amount.StringFixed(2))
	}

	groups := FindDuplicates(
		[]*account.Account{acct("a", at(-1)), acct("b", at(0))},
		map[string][]*transaction.Transaction{"a": olderTxns, "b": newerTxns},
		DefaultOptions(),
	)
	assert.Len(t, groups, 1)
}

func TestFindDuplicates_SampleUsesMostRecent(t *testing.T) {
	olderTxns := history("a", 8)
	// The newer account only has the three oldest events; the five most recent are missing.
	newerTxns := copyOf("b", olderTxns[5:], 3)

	groups := FindDuplicates(
		[]*account.Account{acct("a", at(-1)), acct("b", at(0))},
		map[string][]*transaction.Transaction{"a": olderTxns, "b": newerTxns},
		DefaultOptions(),
	)
	assert.Empty(t, groups)
}

func TestFindDuplicates_SkipsEmptyOlderAccount(t *testing.T) {
	groups := FindDuplicates(
		[]*account.Account{acct("a", at(-1)), acct("b", at(0))},
		map[string][]*transaction.Transaction{"b": history("b", 5)},
		DefaultOptions(),
	)
	assert.Empty(t, groups)
}

func TestFindDuplicates_SmallSampleUsesActualLength(t *testing.T) {
	olderTxns := history("a", 2)
	groups := FindDuplicates(
		[]*account.Account{acct("a", at(-1)), acct("b", at(0))},
		map[string][]*transaction.Transaction{"a": olderTxns, "b": copyOf("b", olderTxns, 2)},
		DefaultOptions(),
	)
	assert.Len(t, groups, 1)
}

func TestFindDuplicates_DifferentIdentityNotCandidates(t *testing.T) {
	other := acct("b", at(0))
	other.Name = "Savings"
	olderTxns := history("a", 5)

	groups := FindDuplicates(
		[]*account.Account{acct("a", at(-1)), other},
		map[string][]*transaction.Transaction{"a": olderTxns, "b": copyOf("b", olderTxns, 5)},
		DefaultOptions(),
	)
	assert.Empty(t, groups)
}

func TestFindDuplicates_TransitiveCluster(t *testing.T) {
	// a~b and b~c pass while a~c does not, yet all three end up in one group.
	// d shares the identity but overlaps with nobody.
	aTxns := history("a", 5)
	newest := &transaction.Transaction{ID: "n", Posted: base.AddDate(0, 0, 1), Amount: decimal.NewFromInt(-7), Description: "Newest"}

	bTxns := append(copyOf("b", aTxns, 5), copyOf("b", []*transaction.Transaction{newest}, 1)...)
	cTxns := append(copyOf("c", aTxns, 3), copyOf("c", []*transaction.Transaction{newest}, 1)...)
	dTxns := []*transaction.Transaction{
		{ID: "d-0", AccountID: "d", Posted: base, Amount: decimal.NewFromInt(-1), Description: "Unrelated"},
	}

	accounts := []*account.Account{
		acct("d", at(3)),
		acct("c", at(2)),
		acct("b", at(1)),
		acct("a", at(0)),
	}
	txns := map[string][]*transaction.Transaction{"a": aTxns, "b": bTxns, "c": cTxns, "d": dTxns}

	ok, ratio := overlaps(aTxns, bTxns, DefaultOptions())
	require.True(t, ok, "a~b ratio %.2f", ratio)
	ok, ratio = overlaps(bTxns, cTxns, DefaultOptions())
	require.True(t, ok, "b~c ratio %.2f", ratio)
	ok, ratio = overlaps(aTxns, cTxns, DefaultOptions())
	require.False(t, ok, "a~c ratio %.2f", ratio)

	groups := FindDuplicates(accounts, txns, DefaultOptions())
	require.Len(t, groups, 1)

	ids := make([]string, 0, len(groups[0].Accounts))
	for _, a := range groups[0].Accounts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestSortOldestFirst(t *testing.T) {
	accounts := []*account.Account{
		acct("z-null", nil),
		acct("b", at(5)),
		acct("a-null", nil),
		acct("c", at(1)),
		acct("a", at(5)),
	}
	sortOldestFirst(accounts)

	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"c", "a", "b", "a-null", "z-null"}, ids)
}

func TestDisjointSet(t *testing.T) {
	ds := newDisjointSet(5)
	ds.union(0, 1)
	ds.union(3, 4)
	ds.union(1, 4)

	assert.Equal(t, ds.find(0), ds.find(3))
	assert.NotEqual(t, ds.find(0), ds.find(2))
}

func TestDetector_IsDuplicate(t *testing.T) {
	store := newMemStore()
	store.addAccount("old", "org-1", "Checking", at(-10))
	store.addAccount("new", "org-1", "Checking", at(0))
	store.addAccount("solo", "org-1", "Savings", at(0))
	for i, tx := range history("old", 5) {
		store.addTxn(tx.ID, "old", tx.Posted, tx.Amount.String(), tx.Description, 0, nil)
		store.addTxn(fmt.Sprintf("new-%d", i), "new", tx.Posted, tx.Amount.String(), tx.Description, 0, nil)
	}

	d := NewDetector(store, txnStore{store}, DefaultOptions())

	dup, err := d.IsDuplicate(context.Background(), "new")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = d.IsDuplicate(context.Background(), "solo")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDetector_SamplesOnlyTheOldestAccount(t *testing.T) {
	store := newMemStore()
	store.addAccount("old", "org-1", "Checking", at(-10))
	store.addAccount("mid", "org-1", "Checking", at(-5))
	store.addAccount("new", "org-1", "Checking", at(0))
	store.addAccount("solo", "org-1", "Savings", at(0))
	for i, tx := range history("old", 8) {
		store.addTxn(tx.ID, "old", tx.Posted, tx.Amount.String(), tx.Description, 0, nil)
		if i < 5 {
			store.addTxn(fmt.Sprintf("mid-%d", i), "mid", tx.Posted, tx.Amount.String(), tx.Description, 0, nil)
			store.addTxn(fmt.Sprintf("new-%d", i), "new", tx.Posted, tx.Amount.String(), tx.Description, 0, nil)
		}
	}

	groups, err := NewDetector(store, txnStore{store}, DefaultOptions()).FindDuplicates(context.Background())
	require.NoError(t, err)

	require.Len(t, groups, 1)
	ids := make([]string, 0, len(groups[0].Accounts))
	for _, a := range groups[0].Accounts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"old", "mid", "new"}, ids)
	assert.Equal(t, []string{"old"}, store.recentLoads)
	assert.ElementsMatch(t, []string{"mid", "new"}, store.fullLoads)
}
