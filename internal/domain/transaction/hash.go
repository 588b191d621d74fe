package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ContentHash fingerprints a transaction by its natural key so the same event is
// recognised even when the provider re-issues it under a different id.
// The result is a 64 character hex SHA-256 digest.
func ContentHash(accountID string, posted *time.Time, amount decimal.Decimal, description string) string {
	postedStr := "none"
	if posted != nil && !posted.IsZero() {
		postedStr = posted.UTC().Format(time.RFC3339)
	}

	sig := fmt.Sprintf("%s:%s:%s:%s", accountID, postedStr, canonicalAmount(amount), description)
	sum := sha256.Sum256([]byte(sig))
	return hex.EncodeToString(sum[:])
}

// HashOf computes the content hash of an existing transaction.
func HashOf(t *Transaction) string {
	return ContentHash(t.AccountID, &t.Posted, t.Amount, t.Description)
}

// canonicalAmount renders a decimal without trailing zeros, so 12.50 and 12.5 agree.
func canonicalAmount(d decimal.Decimal) string {
	return d.String()
}
