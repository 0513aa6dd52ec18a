// Package bank isolates the bank-aggregator collaborator behind a narrow
// fetching port. The aggregator is slow and unreliable compared to local
// storage, so callers treat any failure here as an upstream fault that aborts
// the whole sync batch.
package bank

import (
	"context"
	"fmt"

	"dispensa/internal/core"
)

// Record is one raw transaction from the aggregator feed. Amount follows the
// account's sign convention: positive means debit.
type Record struct {
	ExternalID     string   `json:"transaction_id"`
	Date           string   `json:"date"`
	MerchantName   string   `json:"merchant_name"`
	Amount         float64  `json:"amount"`
	CategoryLabels []string `json:"categories"`
}

// Fetcher fetches the transaction feed for a date window.
type Fetcher interface {
	FetchTransactions(ctx context.Context, accessToken string, from, to core.Date) ([]Record, error)
}

// FetchError is the typed error surface for aggregator failures. It matches
// core.ErrUpstream under errors.Is so the HTTP layer maps it to 502.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("bank %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("bank %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == core.ErrUpstream }
