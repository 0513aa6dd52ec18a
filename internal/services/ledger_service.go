package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"dispensa/internal/bank"
	"dispensa/internal/core"
	"dispensa/internal/events"
	"dispensa/internal/ingest"
	"dispensa/internal/log"
	"dispensa/internal/metrics"
	"dispensa/internal/storage"
)

// LedgerService merges transaction feeds into a cycle's ledger and owns the
// single-row mutations (manual entry, verify toggle, delete, payments).
// Every mutation is gated on the cycle being open.
type LedgerService struct {
	store           storage.Store
	cycles          *CycleService
	fetcher         bank.Fetcher
	events          *events.Client
	groceryKeywords []string
	bankToken       string
}

func NewLedgerService(store storage.Store, cycles *CycleService, fetcher bank.Fetcher, eventsClient *events.Client, groceryKeywords []string, bankToken string) *LedgerService {
	return &LedgerService{
		store:           store,
		cycles:          cycles,
		fetcher:         fetcher,
		events:          eventsClient,
		groceryKeywords: groceryKeywords,
		bankToken:       bankToken,
	}
}

// MergeResult is one batch outcome. For CSV imports
// Added+Skipped+Errors == Considered; for bank syncs Errors is always zero
// and Considered counts only qualifying records.
type MergeResult struct {
	Added      int `json:"added"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
	Considered int `json:"considered"`
}

// ImportCSV parses a raw card-export body and merges its debit rows into the
// month's cycle, creating the cycle on first touch. Row-level problems are
// counted, not fatal; the whole batch fails only on a finalized cycle, an
// undecodable body, or a storage fault.
func (s *LedgerService) ImportCSV(ctx context.Context, monthKey, raw string) (*MergeResult, error) {
	c, err := s.cycles.GetOrCreateByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return nil, core.Conflictf("cycle %s is finalized", monthKey)
	}

	parsed, err := ingest.ParseCSV(raw)
	if err != nil {
		return nil, err
	}

	res := &MergeResult{
		Skipped:    parsed.Skipped,
		Errors:     parsed.Errors,
		Considered: parsed.Considered,
	}
	if err := s.merge(ctx, c, parsed.Candidates, res); err != nil {
		return nil, err
	}

	s.reportImport(ctx, c, core.SourceCSVImport, res)
	return res, nil
}

// SyncBank pulls the aggregator feed for the cycle's date window and merges
// qualifying grocery records. Any fetch failure aborts with zero rows merged.
func (s *LedgerService) SyncBank(ctx context.Context, monthKey string) (*MergeResult, error) {
	if s.fetcher == nil {
		return nil, core.Validationf("no bank aggregator configured")
	}
	c, err := s.cycles.GetOrCreateByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return nil, core.Conflictf("cycle %s is finalized", monthKey)
	}

	records, err := s.fetcher.FetchTransactions(ctx, s.bankToken, c.StartDate, c.EndDate)
	if err != nil {
		return nil, fmt.Errorf("sync cycle %s: %w", monthKey, err)
	}

	var candidates []ingest.Normalized
	for _, rec := range records {
		if !ingest.IsGrocery(rec, s.groceryKeywords) {
			continue
		}
		n, ok := ingest.NormalizeBankRecord(rec)
		if !ok {
			continue
		}
		candidates = append(candidates, n)
	}

	res := &MergeResult{Considered: len(candidates)}
	if err := s.merge(ctx, c, candidates, res); err != nil {
		return nil, err
	}

	s.reportImport(ctx, c, core.SourceBankSync, res)
	return res, nil
}

// merge inserts candidates inside one transaction scope, skipping any whose
// fingerprint already exists anywhere in the store.
func (s *LedgerService) merge(ctx context.Context, c *core.Cycle, candidates []ingest.Normalized, res *MergeResult) error {
	return s.store.RunInTransaction(ctx, func(tx storage.Store) error {
		for _, cand := range candidates {
			if cand.Fingerprint != "" {
				existing, err := tx.FindTransactionByFingerprint(ctx, cand.Fingerprint)
				if err != nil {
					return err
				}
				if existing != nil {
					res.Skipped++
					continue
				}
			}
			t := &core.Transaction{
				CycleID:     c.ID,
				Date:        cand.Date,
				Merchant:    cand.Merchant,
				Amount:      cand.Amount,
				Source:      cand.Source,
				Fingerprint: cand.Fingerprint,
			}
			if err := tx.CreateTransaction(ctx, t); err != nil {
				return err
			}
			res.Added++
		}
		return nil
	})
}

// AddManual records a hand-entered charge. No fingerprint, so repeated
// identical entries are honored as distinct transactions.
func (s *LedgerService) AddManual(ctx context.Context, monthKey string, date core.Date, merchant string, amount decimal.Decimal, notes string) (*core.Transaction, error) {
	c, err := s.cycles.GetOrCreateByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return nil, core.Conflictf("cycle %s is finalized", monthKey)
	}

	n, err := ingest.NormalizeManual(date, merchant, amount)
	if err != nil {
		return nil, err
	}
	t := &core.Transaction{
		CycleID:  c.ID,
		Date:     n.Date,
		Merchant: n.Merchant,
		Amount:   n.Amount,
		Source:   n.Source,
		Notes:    notes,
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("add manual transaction: %w", err)
	}
	metrics.TransactionsIngested.WithLabelValues(string(core.SourceManual)).Inc()
	return t, nil
}

// SetVerified flips the reviewed flag, the only mutable transaction field.
func (s *LedgerService) SetVerified(ctx context.Context, monthKey, id string, verified bool) (*core.Transaction, error) {
	c, t, err := s.transactionInCycle(ctx, monthKey, id)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return nil, core.Conflictf("cycle %s is finalized", monthKey)
	}
	if err := s.store.SetTransactionVerified(ctx, t.ID, verified); err != nil {
		return nil, err
	}
	t.Verified = verified
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, monthKey, id string) error {
	c, t, err := s.transactionInCycle(ctx, monthKey, id)
	if err != nil {
		return err
	}
	if c.Finalized {
		return core.Conflictf("cycle %s is finalized", monthKey)
	}
	return s.store.DeleteTransaction(ctx, t.ID)
}

func (s *LedgerService) ListTransactions(ctx context.Context, monthKey string) ([]core.Transaction, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, c.ID)
}

// AddPayment records an out-of-pocket grocery purchase by one member.
func (s *LedgerService) AddPayment(ctx context.Context, monthKey, personID string, amount decimal.Decimal, note string, date core.Date) (*core.PersonalPayment, error) {
	c, err := s.cycles.GetOrCreateByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return nil, core.Conflictf("cycle %s is finalized", monthKey)
	}
	if _, err := s.store.GetPerson(ctx, personID); err != nil {
		return nil, err
	}

	p := &core.PersonalPayment{
		CycleID:  c.ID,
		PersonID: personID,
		Amount:   amount,
		Note:     note,
		Date:     date,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("add payment: %w", err)
	}
	return p, nil
}

func (s *LedgerService) DeletePayment(ctx context.Context, monthKey, id string) error {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return err
	}
	if c.Finalized {
		return core.Conflictf("cycle %s is finalized", monthKey)
	}
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if p.CycleID != c.ID {
		return core.NotFoundf("payment %s not in cycle %s", id, monthKey)
	}
	return s.store.DeletePayment(ctx, id)
}

func (s *LedgerService) transactionInCycle(ctx context.Context, monthKey, id string) (*core.Cycle, *core.Transaction, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if t.CycleID != c.ID {
		return nil, nil, core.NotFoundf("transaction %s not in cycle %s", id, monthKey)
	}
	return c, t, nil
}

func (s *LedgerService) reportImport(ctx context.Context, c *core.Cycle, source core.Source, res *MergeResult) {
	metrics.RecordImport(string(source), res.Added, res.Skipped, res.Errors)
	slog.InfoContext(ctx, "Ingestion batch merged",
		log.FieldCycleID, c.ID,
		log.FieldMonth, c.MonthKey,
		log.FieldSource, source,
		"added", res.Added,
		"skipped", res.Skipped,
		"errors", res.Errors,
		"considered", res.Considered)

	if s.events == nil {
		return
	}
	msg := events.NewImportCompletedMessage(c.ID, string(source), res.Added, res.Skipped, res.Errors)
	if err := s.events.PublishImportCompleted(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish import completed event",
			log.FieldCycleID, c.ID, log.FieldError, err)
		// Don't fail the request - the rows are merged locally
	}
}
