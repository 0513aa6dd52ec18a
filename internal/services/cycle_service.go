package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dispensa/internal/billing"
	"dispensa/internal/core"
	"dispensa/internal/events"
	"dispensa/internal/export"
	"dispensa/internal/log"
	"dispensa/internal/metrics"
	"dispensa/internal/notify"
	"dispensa/internal/storage"
)

// CycleService drives the billing cycle lifecycle: creation with pre-seeded
// consumption entries, the finalize/unfinalize gate, bill computation, and
// the optional finalization side channels (AMQP, Discord, Sheets export).
type CycleService struct {
	store    storage.Store
	events   *events.Client
	notifier *notify.Notifier
	exporter export.BillWriter
}

func NewCycleService(store storage.Store, eventsClient *events.Client, notifier *notify.Notifier, exporter export.BillWriter) *CycleService {
	return &CycleService{
		store:    store,
		events:   eventsClient,
		notifier: notifier,
		exporter: exporter,
	}
}

// CycleDetail bundles everything the UI needs for one month.
type CycleDetail struct {
	Cycle        core.Cycle
	Transactions []core.Transaction
	Entries      []core.ConsumptionEntry
	Payments     []core.PersonalPayment
	Bill         billing.Bill
}

// ConsumptionInput is one row of a bulk weight upsert.
type ConsumptionInput struct {
	PersonID string
	Weight   int64
	Notes    string
}

// Create opens the cycle for a month. Every currently active person gets a
// zero-weight consumption entry in the same transaction scope, so the bill
// always lists the whole household.
func (s *CycleService) Create(ctx context.Context, monthKey, label string) (*core.Cycle, error) {
	start, end, err := core.MonthBounds(monthKey)
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = core.MonthLabel(monthKey)
	}

	c := &core.Cycle{
		MonthKey:  monthKey,
		Label:     label,
		StartDate: start,
		EndDate:   end,
	}

	err = s.store.RunInTransaction(ctx, func(tx storage.Store) error {
		if err := tx.CreateCycle(ctx, c); err != nil {
			return err
		}
		people, err := tx.ListPeople(ctx, true)
		if err != nil {
			return err
		}
		for _, p := range people {
			entry := &core.ConsumptionEntry{CycleID: c.ID, PersonID: p.ID}
			if err := tx.UpsertConsumptionEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create cycle %s: %w", monthKey, err)
	}

	slog.InfoContext(ctx, "Cycle created", log.FieldMonth, monthKey, log.FieldCycleID, c.ID)
	return c, nil
}

// GetOrCreateByMonth returns the month's cycle, opening it on first touch.
// Ingestion targets a month, not a cycle id, so the first import of a new
// month creates the cycle implicitly.
func (s *CycleService) GetOrCreateByMonth(ctx context.Context, monthKey string) (*core.Cycle, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	c, err = s.Create(ctx, monthKey, "")
	if err == nil {
		return c, nil
	}
	// Lost a creation race; the winner's cycle serves.
	if errors.Is(err, core.ErrConflict) {
		return s.store.GetCycleByMonth(ctx, monthKey)
	}
	return nil, err
}

func (s *CycleService) List(ctx context.Context) ([]core.Cycle, error) {
	return s.store.ListCycles(ctx)
}

// Detail loads the cycle with its ledger rows and the computed bill.
func (s *CycleService) Detail(ctx context.Context, monthKey string) (*CycleDetail, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	bill, txns, entries, payments, err := s.computeBill(ctx, c)
	if err != nil {
		return nil, err
	}
	return &CycleDetail{
		Cycle:        *c,
		Transactions: txns,
		Entries:      entries,
		Payments:     payments,
		Bill:         bill,
	}, nil
}

// Bill computes the allocation for a month without the row listings.
func (s *CycleService) Bill(ctx context.Context, monthKey string) (*core.Cycle, billing.Bill, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return nil, billing.Bill{}, err
	}
	bill, _, _, _, err := s.computeBill(ctx, c)
	if err != nil {
		return nil, billing.Bill{}, err
	}
	return c, bill, nil
}

func (s *CycleService) computeBill(ctx context.Context, c *core.Cycle) (billing.Bill, []core.Transaction, []core.ConsumptionEntry, []core.PersonalPayment, error) {
	people, err := s.store.ListPeople(ctx, false)
	if err != nil {
		return billing.Bill{}, nil, nil, nil, err
	}
	txns, err := s.store.ListTransactions(ctx, c.ID)
	if err != nil {
		return billing.Bill{}, nil, nil, nil, err
	}
	entries, err := s.store.ListConsumptionEntries(ctx, c.ID)
	if err != nil {
		return billing.Bill{}, nil, nil, nil, err
	}
	payments, err := s.store.ListPayments(ctx, c.ID)
	if err != nil {
		return billing.Bill{}, nil, nil, nil, err
	}
	return billing.Compute(people, txns, entries, payments), txns, entries, payments, nil
}

// Finalize closes the month. Finalizing an already-finalized cycle succeeds
// without side effects; the event, notification, and counter fire only on
// the actual transition.
func (s *CycleService) Finalize(ctx context.Context, monthKey string) (*core.Cycle, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return c, nil
	}
	if err := s.store.SetCycleFinalized(ctx, c.ID, true); err != nil {
		return nil, fmt.Errorf("finalize cycle %s: %w", monthKey, err)
	}
	c.Finalized = true
	metrics.CyclesFinalized.Inc()
	slog.InfoContext(ctx, "Cycle finalized", log.FieldMonth, monthKey, log.FieldCycleID, c.ID)

	bill, _, _, _, err := s.computeBill(ctx, c)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute bill for finalized cycle", log.FieldMonth, monthKey, log.FieldError, err)
		return c, nil
	}
	s.publishFinalized(ctx, c, bill)
	s.notifyFinalized(ctx, c, bill)
	return c, nil
}

// Unfinalize reopens the month for corrections. Idempotent.
func (s *CycleService) Unfinalize(ctx context.Context, monthKey string) (*core.Cycle, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	if !c.Finalized {
		return c, nil
	}
	if err := s.store.SetCycleFinalized(ctx, c.ID, false); err != nil {
		return nil, fmt.Errorf("unfinalize cycle %s: %w", monthKey, err)
	}
	c.Finalized = false
	slog.InfoContext(ctx, "Cycle reopened", log.FieldMonth, monthKey, log.FieldCycleID, c.ID)
	return c, nil
}

// SetConsumption bulk-upserts dinner counts. Rejected wholesale when the
// cycle is finalized; otherwise all rows land in one transaction scope.
func (s *CycleService) SetConsumption(ctx context.Context, monthKey string, inputs []ConsumptionInput) ([]core.ConsumptionEntry, error) {
	c, err := s.store.GetCycleByMonth(ctx, monthKey)
	if err != nil {
		return nil, err
	}
	if c.Finalized {
		return nil, core.Conflictf("cycle %s is finalized", monthKey)
	}

	err = s.store.RunInTransaction(ctx, func(tx storage.Store) error {
		for _, in := range inputs {
			if _, err := tx.GetPerson(ctx, in.PersonID); err != nil {
				return err
			}
			entry := &core.ConsumptionEntry{
				CycleID:  c.ID,
				PersonID: in.PersonID,
				Weight:   in.Weight,
				Notes:    in.Notes,
			}
			if err := entry.Validate(); err != nil {
				return err
			}
			if err := tx.UpsertConsumptionEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.ListConsumptionEntries(ctx, c.ID)
}

// Export pushes the current bill to the configured sink. Allowed on
// finalized cycles; exporting is a read.
func (s *CycleService) Export(ctx context.Context, monthKey string) error {
	if s.exporter == nil {
		return core.Validationf("no bill exporter configured")
	}
	c, bill, err := s.Bill(ctx, monthKey)
	if err != nil {
		return err
	}
	if err := s.exporter.AppendBill(ctx, *c, bill); err != nil {
		return fmt.Errorf("export bill %s: %w", monthKey, err)
	}
	slog.InfoContext(ctx, "Bill exported", log.FieldMonth, monthKey)
	return nil
}

func (s *CycleService) publishFinalized(ctx context.Context, c *core.Cycle, bill billing.Bill) {
	if s.events == nil {
		return
	}
	msg := events.NewCycleFinalizedMessage(c.ID, c.MonthKey, bill.Total.StringFixed(2))
	if err := s.events.PublishCycleFinalized(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish cycle finalized event",
			log.FieldMonth, c.MonthKey, log.FieldError, err)
		// Don't fail the request - the cycle is finalized locally
	}
}

func (s *CycleService) notifyFinalized(ctx context.Context, c *core.Cycle, bill billing.Bill) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.CycleFinalized(*c, bill); err != nil {
		slog.ErrorContext(ctx, "Failed to send finalized notification",
			log.FieldMonth, c.MonthKey, log.FieldError, err)
	}
}
