package ingest

import (
	"strings"

	"github.com/shopspring/decimal"

	"dispensa/internal/bank"
	"dispensa/internal/core"
)

// Category labels the aggregator uses for grocery spend, matched as
// case-insensitive substrings.
var groceryCategories = []string{"groceries", "supermarket", "food and drink"}

// IsGrocery classifies an aggregator record as grocery spend: the merchant
// name contains any configured keyword, or any category label contains one of
// the built-in grocery labels. Both checks are case-insensitive.
func IsGrocery(rec bank.Record, keywords []string) bool {
	merchant := strings.ToLower(rec.MerchantName)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(merchant, kw) {
			return true
		}
	}
	for _, label := range rec.CategoryLabels {
		label = strings.ToLower(label)
		for _, want := range groceryCategories {
			if strings.Contains(label, want) {
				return true
			}
		}
	}
	return false
}

// NormalizeBankRecord converts one qualifying feed record. The returned bool
// is false when the record does not survive normalization (unparseable date
// or a non-positive absolute amount); such records are filtered out and never
// counted in sync totals. The fingerprint is the aggregator's own transaction
// id, which keeps a re-sync against a different cycle's date window from
// re-inserting rows already attributed elsewhere.
func NormalizeBankRecord(rec bank.Record) (Normalized, bool) {
	date, err := core.ParseDate(rec.Date)
	if err != nil {
		return Normalized{}, false
	}
	amount := decimal.NewFromFloat(rec.Amount).Abs().Round(2)
	if !amount.IsPositive() {
		return Normalized{}, false
	}
	merchant := truncateMerchant(rec.MerchantName)
	if merchant == "" {
		return Normalized{}, false
	}
	fingerprint := strings.TrimSpace(rec.ExternalID)
	if fingerprint == "" {
		return Normalized{}, false
	}
	return Normalized{
		Date:        date,
		Merchant:    merchant,
		Amount:      amount,
		Source:      core.SourceBankSync,
		Fingerprint: fingerprint,
	}, true
}
