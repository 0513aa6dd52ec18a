package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceBankSync  Source = "bank-sync"
	SourceCSVImport Source = "csv-import"
	SourceManual    Source = "manual"
)

// MaxMerchantLen caps merchant/description fields across all ingestion paths.
const MaxMerchantLen = 200

type (
	// Source tags where a transaction entered the ledger from.
	Source string

	// Person is a household member. Members are never hard-deleted so that
	// historical cycles keep resolving their consumption and payment rows.
	Person struct {
		ID        string
		Name      string
		Active    bool
		CreatedAt time.Time
	}

	// Cycle is one monthly billing period, keyed by "YYYY-MM". Date bounds
	// are derived from the month key at creation and never change.
	Cycle struct {
		ID        string
		MonthKey  string
		Label     string
		StartDate Date
		EndDate   Date
		Finalized bool
		CreatedAt time.Time
	}

	// Transaction is one shared grocery charge attributed to a cycle.
	// Amount is always the absolute expense value, whatever the sign
	// convention of the source feed was.
	Transaction struct {
		ID          string
		CycleID     string
		Date        Date
		Merchant    string
		Amount      decimal.Decimal
		Source      Source
		Fingerprint string // "" for manual entries
		Verified    bool
		Notes       string
	}

	// ConsumptionEntry holds one person's dinner count for one cycle.
	// There is exactly one row per (cycle, person) pair.
	ConsumptionEntry struct {
		ID       string
		CycleID  string
		PersonID string
		Weight   int64
		Notes    string
	}

	// PersonalPayment is money a member spent from personal funds, credited
	// against their computed share of the cycle.
	PersonalPayment struct {
		ID       string
		CycleID  string
		PersonID string
		Amount   decimal.Decimal
		Note     string
		Date     Date // optional, zero when not provided
	}
)

func (s Source) Valid() bool {
	switch s {
	case SourceBankSync, SourceCSVImport, SourceManual:
		return true
	}
	return false
}

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidateMonthKey checks the "YYYY-MM" cycle key format.
func ValidateMonthKey(key string) error {
	if !monthKeyRe.MatchString(key) {
		return Validationf("invalid month key %q, want YYYY-MM", key)
	}
	return nil
}

// MonthBounds returns the inclusive first and last calendar day of a month key.
func MonthBounds(key string) (Date, Date, error) {
	if err := ValidateMonthKey(key); err != nil {
		return Date{}, Date{}, err
	}
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return Date{}, Date{}, Validationf("invalid month key %q", key)
	}
	start := Date{Time: t}
	end := Date{Time: t.AddDate(0, 1, -1)}
	return start, end, nil
}

// MonthLabel renders a human label such as "December 2025" for a month key.
func MonthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}

func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty person name", ErrValidation)
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.CycleID == "" {
		return Validationf("transaction without cycle")
	}
	if t.Date.IsZero() {
		return Validationf("transaction without date")
	}
	if strings.TrimSpace(t.Merchant) == "" {
		return Validationf("empty merchant")
	}
	if len(t.Merchant) > MaxMerchantLen {
		return Validationf("merchant too long (max %d characters)", MaxMerchantLen)
	}
	if !t.Amount.IsPositive() {
		return Validationf("transaction amount must be positive")
	}
	if !t.Source.Valid() {
		return Validationf("unknown source %q", t.Source)
	}
	return nil
}

func (e ConsumptionEntry) Validate() error {
	if e.CycleID == "" || e.PersonID == "" {
		return Validationf("consumption entry needs cycle and person")
	}
	if e.Weight < 0 {
		return Validationf("dinner count cannot be negative")
	}
	return nil
}

func (p PersonalPayment) Validate() error {
	if p.CycleID == "" || p.PersonID == "" {
		return Validationf("payment needs cycle and person")
	}
	if !p.Amount.IsPositive() {
		return Validationf("payment amount must be positive")
	}
	return nil
}
