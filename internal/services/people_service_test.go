package services

import (
	"context"
	"errors"
	"testing"

	"dispensa/internal/core"
	"dispensa/internal/storage/memory"
)

func TestPeopleServiceCreateAndRename(t *testing.T) {
	svc := NewPeopleService(memory.New())
	ctx := context.Background()

	p, err := svc.Create(ctx, "  Alice  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "Alice" {
		t.Errorf("name = %q, want trimmed", p.Name)
	}
	if !p.Active {
		t.Error("new person should be active")
	}

	if _, err := svc.Create(ctx, "Alice"); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate name: want conflict, got %v", err)
	}
	if _, err := svc.Create(ctx, "   "); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("blank name: want validation error, got %v", err)
	}

	renamed, err := svc.Rename(ctx, p.ID, "Alicia")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.ID != p.ID || renamed.Name != "Alicia" {
		t.Errorf("rename result = %+v", renamed)
	}
}

func TestPeopleServiceDeactivatePreservesHistory(t *testing.T) {
	store := memory.New()
	svc := NewPeopleService(store)
	ctx := context.Background()

	p, err := svc.Create(ctx, "Bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cycles := NewCycleService(store, nil, nil, nil)
	c, err := cycles.Create(ctx, "2025-12", "")
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	if err := svc.Deactivate(ctx, p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	// Idempotent.
	if err := svc.Deactivate(ctx, p.ID); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}

	active, _ := svc.List(ctx, true)
	if len(active) != 0 {
		t.Errorf("active = %d, want 0", len(active))
	}

	// The entry pre-seeded at cycle creation survives deactivation.
	entries, err := store.ListConsumptionEntries(ctx, c.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].PersonID != p.ID {
		t.Errorf("entries = %+v, want Bob's zero-weight row", entries)
	}
}
