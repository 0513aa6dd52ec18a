package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"dispensa/internal/core"
	expmem "dispensa/internal/export/memory"
	"dispensa/internal/storage/memory"
)

func TestCycleCreatePreSeedsActivePeople(t *testing.T) {
	store := memory.New()
	people := NewPeopleService(store)
	cycles := NewCycleService(store, nil, nil, nil)
	ctx := context.Background()

	alice, _ := people.Create(ctx, "Alice")
	bob, _ := people.Create(ctx, "Bob")
	if err := people.Deactivate(ctx, bob.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	c, err := cycles.Create(ctx, "2025-12", "")
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	if c.Label != "December 2025" {
		t.Errorf("label = %q", c.Label)
	}

	entries, err := store.ListConsumptionEntries(ctx, c.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (only active people)", len(entries))
	}
	if entries[0].PersonID != alice.ID || entries[0].Weight != 0 {
		t.Errorf("seeded entry = %+v", entries[0])
	}

	if _, err := cycles.Create(ctx, "2025-12", ""); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("second create for month: want conflict, got %v", err)
	}
	if _, err := cycles.Create(ctx, "2025-13", ""); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("bad month key: want validation, got %v", err)
	}
}

func TestCycleGetOrCreateByMonth(t *testing.T) {
	store := memory.New()
	cycles := NewCycleService(store, nil, nil, nil)
	ctx := context.Background()

	first, err := cycles.GetOrCreateByMonth(ctx, "2026-01")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := cycles.GetOrCreateByMonth(ctx, "2026-01")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("got two cycles for one month: %s, %s", first.ID, second.ID)
	}
}

func TestFinalizeUnfinalizeIdempotent(t *testing.T) {
	store := memory.New()
	cycles := NewCycleService(store, nil, nil, nil)
	ctx := context.Background()

	if _, err := cycles.Create(ctx, "2025-12", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	c, err := cycles.Finalize(ctx, "2025-12")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !c.Finalized {
		t.Fatal("expected finalized")
	}

	// Re-finalizing is a silent success.
	if _, err := cycles.Finalize(ctx, "2025-12"); err != nil {
		t.Fatalf("second finalize: %v", err)
	}

	c, err = cycles.Unfinalize(ctx, "2025-12")
	if err != nil {
		t.Fatalf("unfinalize: %v", err)
	}
	if c.Finalized {
		t.Fatal("expected reopened")
	}
	if _, err := cycles.Unfinalize(ctx, "2025-12"); err != nil {
		t.Fatalf("second unfinalize: %v", err)
	}

	if _, err := cycles.Finalize(ctx, "2030-01"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("finalize missing month: want not found, got %v", err)
	}
}

func TestSetConsumptionGateAndUpsert(t *testing.T) {
	store := memory.New()
	people := NewPeopleService(store)
	cycles := NewCycleService(store, nil, nil, nil)
	ctx := context.Background()

	alice, _ := people.Create(ctx, "Alice")
	if _, err := cycles.Create(ctx, "2025-12", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	entries, err := cycles.SetConsumption(ctx, "2025-12", []ConsumptionInput{
		{PersonID: alice.ID, Weight: 18},
	})
	if err != nil {
		t.Fatalf("set consumption: %v", err)
	}
	if len(entries) != 1 || entries[0].Weight != 18 {
		t.Errorf("entries = %+v", entries)
	}

	// Last write wins for the same person.
	entries, err = cycles.SetConsumption(ctx, "2025-12", []ConsumptionInput{
		{PersonID: alice.ID, Weight: 22, Notes: "corrected"},
	})
	if err != nil {
		t.Fatalf("re-set consumption: %v", err)
	}
	if len(entries) != 1 || entries[0].Weight != 22 {
		t.Errorf("entries after rewrite = %+v", entries)
	}

	if _, err := cycles.SetConsumption(ctx, "2025-12", []ConsumptionInput{
		{PersonID: alice.ID, Weight: -1},
	}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("negative weight: want validation, got %v", err)
	}
	if _, err := cycles.SetConsumption(ctx, "2025-12", []ConsumptionInput{
		{PersonID: "nope", Weight: 1},
	}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown person: want not found, got %v", err)
	}

	if _, err := cycles.Finalize(ctx, "2025-12"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := cycles.SetConsumption(ctx, "2025-12", []ConsumptionInput{
		{PersonID: alice.ID, Weight: 5},
	}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("finalized gate: want conflict, got %v", err)
	}

	// Unfinalize restores writability.
	if _, err := cycles.Unfinalize(ctx, "2025-12"); err != nil {
		t.Fatalf("unfinalize: %v", err)
	}
	if _, err := cycles.SetConsumption(ctx, "2025-12", []ConsumptionInput{
		{PersonID: alice.ID, Weight: 5},
	}); err != nil {
		t.Fatalf("write after reopen: %v", err)
	}
}

func TestCycleDetailComputesBill(t *testing.T) {
	store := memory.New()
	people := NewPeopleService(store)
	cycles := NewCycleService(store, nil, nil, nil)
	ledger := NewLedgerService(store, cycles, nil, nil, nil, "")
	ctx := context.Background()

	alice, _ := people.Create(ctx, "Alice")
	if _, err := cycles.Create(ctx, "2025-12", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := cycles.SetConsumption(ctx, "2025-12", []ConsumptionInput{
		{PersonID: alice.ID, Weight: 10},
	}); err != nil {
		t.Fatalf("set consumption: %v", err)
	}
	if _, err := ledger.AddManual(ctx, "2025-12", core.NewDate(2025, 12, 5), "Market", decimal.RequireFromString("80.00"), ""); err != nil {
		t.Fatalf("add manual: %v", err)
	}
	if _, err := ledger.AddPayment(ctx, "2025-12", alice.ID, decimal.RequireFromString("20.00"), "", core.Date{}); err != nil {
		t.Fatalf("add payment: %v", err)
	}

	detail, err := cycles.Detail(ctx, "2025-12")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Transactions) != 1 || len(detail.Payments) != 1 {
		t.Fatalf("detail rows = %d txns, %d payments", len(detail.Transactions), len(detail.Payments))
	}
	if got := detail.Bill.Total.StringFixed(2); got != "100.00" {
		t.Errorf("total = %s, want 100.00 (transactions plus payments)", got)
	}
	row := detail.Bill.Rows[0]
	if got := row.Balance.StringFixed(2); got != "80.00" {
		t.Errorf("balance = %s, want 80.00", got)
	}
}

func TestCycleExport(t *testing.T) {
	store := memory.New()
	sink := expmem.New()
	cycles := NewCycleService(store, nil, nil, sink)
	ctx := context.Background()

	if _, err := cycles.Create(ctx, "2025-12", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := cycles.Export(ctx, "2025-12"); err != nil {
		t.Fatalf("export: %v", err)
	}
	bills := sink.Bills()
	if len(bills) != 1 || bills[0].Cycle.MonthKey != "2025-12" {
		t.Fatalf("exported = %+v", bills)
	}

	noSink := NewCycleService(store, nil, nil, nil)
	if err := noSink.Export(ctx, "2025-12"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("export without sink: want validation, got %v", err)
	}
}
