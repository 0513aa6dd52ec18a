// Package billing computes the per-person bill for one cycle. It is a pure
// calculation layer: it never touches storage and has no side effects.
package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"dispensa/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Row is one person's line on the computed bill. SharePercent, Owed, Paid and
// Balance carry presentation rounding; the underlying split is not reconciled
// to the cycle total, so rounded rows may not sum to Total exactly. That drift
// is accepted.
type Row struct {
	PersonID     string
	PersonName   string
	Weight       int64
	SharePercent decimal.Decimal
	Owed         decimal.Decimal
	Paid         decimal.Decimal
	Balance      decimal.Decimal
}

// Bill is the computed result for a cycle. Total and TotalWeight are exact.
type Bill struct {
	Total       decimal.Decimal
	TotalWeight int64
	Rows        []Row
}

// Credit reports whether the row's person has paid at least their share.
func (r Row) Credit() bool {
	return !r.Balance.IsPositive()
}

// Compute builds the bill for one cycle. The pool is the sum of all shared
// transactions plus all personal payments: a personal receipt counts as
// household spend first, then comes back as a credit on the payer's row.
// Each person with a consumption entry gets a row, zero-weight entries
// included. With zero total weight every share is zero.
func Compute(people []core.Person, txns []core.Transaction, entries []core.ConsumptionEntry, payments []core.PersonalPayment) Bill {
	total := decimal.Zero
	for _, tx := range txns {
		total = total.Add(tx.Amount)
	}

	paidBy := make(map[string]decimal.Decimal)
	for _, p := range payments {
		total = total.Add(p.Amount)
		cur, ok := paidBy[p.PersonID]
		if !ok {
			cur = decimal.Zero
		}
		paidBy[p.PersonID] = cur.Add(p.Amount)
	}

	names := make(map[string]string, len(people))
	for _, p := range people {
		names[p.ID] = p.Name
	}

	var totalWeight int64
	for _, e := range entries {
		totalWeight += e.Weight
	}

	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		share := decimal.Zero
		if totalWeight > 0 {
			share = decimal.NewFromInt(e.Weight).Div(decimal.NewFromInt(totalWeight))
		}
		paid, ok := paidBy[e.PersonID]
		if !ok {
			paid = decimal.Zero
		}
		owed := total.Mul(share)
		rows = append(rows, Row{
			PersonID:     e.PersonID,
			PersonName:   names[e.PersonID],
			Weight:       e.Weight,
			SharePercent: share.Round(4).Mul(hundred),
			Owed:         owed.Round(2),
			Paid:         paid.Round(2),
			Balance:      owed.Sub(paid).Round(2),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PersonName != rows[j].PersonName {
			return rows[i].PersonName < rows[j].PersonName
		}
		return rows[i].PersonID < rows[j].PersonID
	})

	return Bill{Total: total, TotalWeight: totalWeight, Rows: rows}
}
