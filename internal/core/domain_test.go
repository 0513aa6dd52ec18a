package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateMonthKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"2025-01", true},
		{"2025-12", true},
		{"2025-00", false},
		{"2025-13", false},
		{"2025-1", false},
		{"25-01", false},
		{"", false},
		{"2025-01-01", false},
	}
	for _, tc := range cases {
		err := ValidateMonthKey(tc.key)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.key, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.key)
		}
	}
}

func TestMonthBounds(t *testing.T) {
	start, end, err := MonthBounds("2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.String() != "2025-02-01" {
		t.Errorf("start = %s", start)
	}
	if end.String() != "2025-02-28" {
		t.Errorf("end = %s", end)
	}

	_, end, err = MonthBounds("2024-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if end.String() != "2024-02-29" {
		t.Errorf("leap year end = %s", end)
	}

	if _, _, err := MonthBounds("2024-14"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-12-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2025-12-29" {
		t.Errorf("round trip = %s", d)
	}

	for _, bad := range []string{"29-12-2025", "2025/12/29", "2025-12-32", "header", ""} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("%q expected error", bad)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		CycleID:  "c1",
		Date:     NewDate(2025, 12, 1),
		Merchant: "Save-On-Foods",
		Amount:   decimal.RequireFromString("51.20"),
		Source:   SourceCSVImport,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{CycleID: "", Date: good.Date, Merchant: "x", Amount: good.Amount, Source: SourceManual},
		{CycleID: "c1", Merchant: "x", Amount: good.Amount, Source: SourceManual},
		{CycleID: "c1", Date: good.Date, Merchant: "  ", Amount: good.Amount, Source: SourceManual},
		{CycleID: "c1", Date: good.Date, Merchant: strings.Repeat("a", MaxMerchantLen+1), Amount: good.Amount, Source: SourceManual},
		{CycleID: "c1", Date: good.Date, Merchant: "x", Amount: decimal.Zero, Source: SourceManual},
		{CycleID: "c1", Date: good.Date, Merchant: "x", Amount: good.Amount.Neg(), Source: SourceManual},
		{CycleID: "c1", Date: good.Date, Merchant: "x", Amount: good.Amount, Source: Source("email")},
	}
	for i, tx := range bads {
		if err := tx.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestConsumptionEntryValidate(t *testing.T) {
	if err := (ConsumptionEntry{CycleID: "c", PersonID: "p", Weight: 0}).Validate(); err != nil {
		t.Fatalf("zero weight should be valid, got %v", err)
	}
	if err := (ConsumptionEntry{CycleID: "c", PersonID: "p", Weight: -1}).Validate(); err == nil {
		t.Fatal("negative weight expected error")
	}
}

func TestPersonalPaymentValidate(t *testing.T) {
	good := PersonalPayment{CycleID: "c", PersonID: "p", Amount: decimal.NewFromInt(45)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := PersonalPayment{CycleID: "c", PersonID: "p", Amount: decimal.Zero}
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
