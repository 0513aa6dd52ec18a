package events

import (
	"testing"
	"time"
)

func TestNewImportCompletedMessage(t *testing.T) {
	msg := NewImportCompletedMessage("cycle-1", "csv-import", 3, 2, 1)

	if msg.CycleID != "cycle-1" {
		t.Errorf("CycleID = %v, want cycle-1", msg.CycleID)
	}
	if msg.Source != "csv-import" {
		t.Errorf("Source = %v, want csv-import", msg.Source)
	}
	if msg.Added != 3 || msg.Skipped != 2 || msg.Errors != 1 {
		t.Errorf("counters = %d/%d/%d, want 3/2/1", msg.Added, msg.Skipped, msg.Errors)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestImportCompletedMessage_JSON(t *testing.T) {
	timestamp := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	msg := &ImportCompletedMessage{
		CycleID:   "cycle-1",
		Source:    "bank-sync",
		Added:     7,
		Skipped:   4,
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := ImportCompletedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ImportCompletedMessageFromJSON() error = %v", err)
	}

	if parsed.CycleID != msg.CycleID || parsed.Source != msg.Source {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
	if parsed.Added != msg.Added || parsed.Skipped != msg.Skipped || parsed.Errors != msg.Errors {
		t.Errorf("parsed counters = %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestCycleFinalizedMessage_JSON(t *testing.T) {
	msg := NewCycleFinalizedMessage("cycle-1", "2025-12", "665.51")

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := CycleFinalizedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("CycleFinalizedMessageFromJSON() error = %v", err)
	}

	if parsed.MonthKey != "2025-12" || parsed.Total != "665.51" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestImportCompletedMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"added": "not_a_number"}`)

	if _, err := ImportCompletedMessageFromJSON(invalidJSON); err == nil {
		t.Error("ImportCompletedMessageFromJSON() should fail with invalid JSON")
	}
}
