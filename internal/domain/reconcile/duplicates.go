package reconcile

import (
	"log"
	"sort"

	"finsync/internal/domain/account"
	"finsync/internal/domain/transaction"
)

type identity struct {
	orgID string
	name  string
}

// FindDuplicates groups accounts sharing org and name, then keeps only those
// whose recent transactions overlap. txns maps account id to that account's
// transactions in any order. Groups of three or more are clustered
// transitively over every passing pair.
func FindDuplicates(accounts []*account.Account, txns map[string][]*transaction.Transaction, opts Options) []DuplicateGroup {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultOptions().SampleSize
	}

	byIdentity := make(map[identity][]*account.Account)
	for _, a := range accounts {
		key := identityOf(a)
		byIdentity[key] = append(byIdentity[key], a)
	}

	keys := make([]identity, 0, len(byIdentity))
	for k, members := range byIdentity {
		if len(members) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].orgID != keys[j].orgID {
			return keys[i].orgID < keys[j].orgID
		}
		return keys[i].name < keys[j].name
	})

	var groups []DuplicateGroup
	for _, key := range keys {
		members := byIdentity[key]
		sortOldestFirst(members)

		if len(members) == 2 {
			older, newer := members[0], members[1]
			if ok, _ := overlaps(txns[older.ID], txns[newer.ID], opts); ok {
				log.Printf("Found duplicate: %s (%s)", key.name, key.orgID)
				groups = append(groups, DuplicateGroup{OrgID: key.orgID, Name: key.name, Accounts: members})
			}
			continue
		}

		for _, cluster := range clusterPairs(members, txns, opts) {
			log.Printf("Found duplicate group: %s (%s) - %d accounts", key.name, key.orgID, len(cluster))
			groups = append(groups, DuplicateGroup{OrgID: key.orgID, Name: key.name, Accounts: cluster})
		}
	}
	return groups
}

// clusterPairs tests every (older, newer) pair of members, which must already
// be sorted oldest first, and returns the connected components of passing pairs.
func clusterPairs(members []*account.Account, txns map[string][]*transaction.Transaction, opts Options) [][]*account.Account {
	ds := newDisjointSet(len(members))
	linked := make([]bool, len(members))

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			newerTxns := txns[members[j].ID]
			if len(newerTxns) == 0 {
				continue
			}
			if ok, _ := overlaps(txns[members[i].ID], newerTxns, opts); ok {
				ds.union(i, j)
				linked[i], linked[j] = true, true
			}
		}
	}

	byRoot := make(map[int][]*account.Account)
	var roots []int
	for i, a := range members {
		if !linked[i] {
			continue
		}
		r := ds.find(i)
		if _, seen := byRoot[r]; !seen {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], a)
	}

	clusters := make([][]*account.Account, 0, len(roots))
	for _, r := range roots {
		clusters = append(clusters, byRoot[r])
	}
	return clusters
}

// overlaps compares the older account's most recent transactions against all
// of the newer account's. An older account without transactions never matches.
func overlaps(older, newer []*transaction.Transaction, opts Options) (bool, float64) {
	sample := recentSample(older, opts.SampleSize)
	if len(sample) == 0 {
		return false, 0
	}

	lookup := make(map[transaction.NaturalKey]struct{}, len(newer))
	for _, t := range newer {
		lookup[t.NaturalKey()] = struct{}{}
	}

	matches := 0
	for _, t := range sample {
		if _, ok := lookup[t.NaturalKey()]; ok {
			matches++
		}
	}
	ratio := float64(matches) / float64(len(sample))
	return ratio >= opts.MinMatchRatio, ratio
}

func recentSample(txns []*transaction.Transaction, n int) []*transaction.Transaction {
	sorted := make([]*transaction.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Posted.After(sorted[j].Posted)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// sortOldestFirst orders by created_at ascending with unknown creation last,
// then by id.
func sortOldestFirst(accounts []*account.Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		a, b := accounts[i], accounts[j]
		switch {
		case a.CreatedAt == nil && b.CreatedAt != nil:
			return false
		case a.CreatedAt != nil && b.CreatedAt == nil:
			return true
		case a.CreatedAt != nil && b.CreatedAt != nil && !a.CreatedAt.Equal(*b.CreatedAt):
			return a.CreatedAt.Before(*b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
