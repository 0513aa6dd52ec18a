package http

import (
	"dispensa/internal/billing"
	"dispensa/internal/core"
)

// Wire representations. Monetary amounts travel as fixed two-decimal strings
// so clients never see float artifacts; dates travel as YYYY-MM-DD.

type personJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type cycleJSON struct {
	ID        string `json:"id"`
	MonthKey  string `json:"month"`
	Label     string `json:"label"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Finalized bool   `json:"finalized"`
}

type transactionJSON struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
	Source   string `json:"source"`
	Verified bool   `json:"verified"`
	Notes    string `json:"notes,omitempty"`
}

type entryJSON struct {
	PersonID string `json:"person_id"`
	Weight   int64  `json:"weight"`
	Notes    string `json:"notes,omitempty"`
}

type paymentJSON struct {
	ID       string `json:"id"`
	PersonID string `json:"person_id"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
	Date     string `json:"date,omitempty"`
}

type billRowJSON struct {
	PersonID     string `json:"person_id"`
	PersonName   string `json:"person_name"`
	Weight       int64  `json:"weight"`
	SharePercent string `json:"share_percent"`
	Owed         string `json:"owed"`
	Paid         string `json:"paid"`
	Balance      string `json:"balance"`
	Credit       bool   `json:"credit"`
}

type billJSON struct {
	Total       string        `json:"total"`
	TotalWeight int64         `json:"total_weight"`
	Rows        []billRowJSON `json:"rows"`
}

type cycleDetailJSON struct {
	Cycle        cycleJSON         `json:"cycle"`
	Transactions []transactionJSON `json:"transactions"`
	Entries      []entryJSON       `json:"entries"`
	Payments     []paymentJSON     `json:"payments"`
	Bill         billJSON          `json:"bill"`
}

func toPersonJSON(p core.Person) personJSON {
	return personJSON{
		ID:        p.ID,
		Name:      p.Name,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func toPeopleJSON(people []core.Person) []personJSON {
	out := make([]personJSON, 0, len(people))
	for _, p := range people {
		out = append(out, toPersonJSON(p))
	}
	return out
}

func toCycleJSON(c core.Cycle) cycleJSON {
	return cycleJSON{
		ID:        c.ID,
		MonthKey:  c.MonthKey,
		Label:     c.Label,
		StartDate: c.StartDate.String(),
		EndDate:   c.EndDate.String(),
		Finalized: c.Finalized,
	}
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:       t.ID,
		Date:     t.Date.String(),
		Merchant: t.Merchant,
		Amount:   t.Amount.StringFixed(2),
		Source:   string(t.Source),
		Verified: t.Verified,
		Notes:    t.Notes,
	}
}

func toTransactionsJSON(txns []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

func toEntriesJSON(entries []core.ConsumptionEntry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{PersonID: e.PersonID, Weight: e.Weight, Notes: e.Notes})
	}
	return out
}

func toPaymentJSON(p core.PersonalPayment) paymentJSON {
	return paymentJSON{
		ID:       p.ID,
		PersonID: p.PersonID,
		Amount:   p.Amount.StringFixed(2),
		Note:     p.Note,
		Date:     p.Date.String(),
	}
}

func toPaymentsJSON(payments []core.PersonalPayment) []paymentJSON {
	out := make([]paymentJSON, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentJSON(p))
	}
	return out
}

func toBillJSON(b billing.Bill) billJSON {
	rows := make([]billRowJSON, 0, len(b.Rows))
	for _, r := range b.Rows {
		rows = append(rows, billRowJSON{
			PersonID:     r.PersonID,
			PersonName:   r.PersonName,
			Weight:       r.Weight,
			SharePercent: r.SharePercent.StringFixed(2),
			Owed:         r.Owed.StringFixed(2),
			Paid:         r.Paid.StringFixed(2),
			Balance:      r.Balance.StringFixed(2),
			Credit:       r.Credit(),
		})
	}
	return billJSON{
		Total:       b.Total.StringFixed(2),
		TotalWeight: b.TotalWeight,
		Rows:        rows,
	}
}
