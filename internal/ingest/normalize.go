// Package ingest converts heterogeneous source records (bank feed entries,
// CSV rows, manual input) into one canonical transaction shape with a stable
// deduplication fingerprint.
package ingest

import (
	"strings"

	"github.com/shopspring/decimal"

	"dispensa/internal/core"
)

// Normalized is the canonical transaction shape every source reduces to
// before it reaches the ledger merger. Fingerprint is "" only on the manual
// path, which deliberately gets no dedup protection.
type Normalized struct {
	Date        core.Date
	Merchant    string
	Amount      decimal.Decimal
	Source      core.Source
	Fingerprint string
}

// NormalizeManual validates a user-entered charge. The amount sign is ignored
// and the absolute value stored; merchant is required after trimming.
func NormalizeManual(date core.Date, merchant string, amount decimal.Decimal) (Normalized, error) {
	merchant = strings.TrimSpace(merchant)
	if merchant == "" {
		return Normalized{}, core.Validationf("merchant is required")
	}
	if len(merchant) > core.MaxMerchantLen {
		return Normalized{}, core.Validationf("merchant too long (max %d characters)", core.MaxMerchantLen)
	}
	if date.IsZero() {
		return Normalized{}, core.Validationf("date is required")
	}
	amount = amount.Abs()
	if !amount.IsPositive() {
		return Normalized{}, core.Validationf("amount must be non-zero")
	}
	return Normalized{
		Date:     date,
		Merchant: merchant,
		Amount:   amount,
		Source:   core.SourceManual,
	}, nil
}

func truncateMerchant(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > core.MaxMerchantLen {
		return s[:core.MaxMerchantLen]
	}
	return s
}
