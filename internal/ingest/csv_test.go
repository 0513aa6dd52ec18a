package ingest

import (
	"testing"

	"dispensa/internal/core"
)

func TestParseCSVQuotedVendor(t *testing.T) {
	res, err := ParseCSV(`2025-12-29,"PHARMASAVE 115 VICTORIA, BC",51.20,,4500********6473`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Considered != 1 || res.Errors != 0 || res.Skipped != 0 {
		t.Fatalf("counters = %+v", res)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(res.Candidates))
	}
	row := res.Candidates[0]
	if row.Date.String() != "2025-12-29" {
		t.Errorf("date = %s", row.Date)
	}
	if row.Merchant != "PHARMASAVE 115 VICTORIA, BC" {
		t.Errorf("merchant = %q", row.Merchant)
	}
	if row.Amount.StringFixed(2) != "51.20" {
		t.Errorf("amount = %s", row.Amount)
	}
	if row.Source != core.SourceCSVImport {
		t.Errorf("source = %s", row.Source)
	}
	if row.Fingerprint != "csv:2025-12-29:PHARMASAVE 115 VICTORIA, BC:51.20" {
		t.Errorf("fingerprint = %q", row.Fingerprint)
	}
}

func TestParseCSVEscapedQuotes(t *testing.T) {
	res, _ := ParseCSV(`2025-12-02,"BOB""S MARKET",12.00,,4500********6473`)
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(res.Candidates))
	}
	if got := res.Candidates[0].Merchant; got != `BOB"S MARKET` {
		t.Errorf("merchant = %q", got)
	}
}

func TestParseCSVHeaderSkippedSilently(t *testing.T) {
	text := "date,vendor,debit,credit,card_number\n" +
		"2025-12-01,SAVE-ON-FOODS,20.00,,4500********6473\n"
	res, _ := ParseCSV(text)
	if res.Considered != 1 || res.Errors != 0 {
		t.Fatalf("counters = %+v, header must not count", res)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d", len(res.Candidates))
	}
}

func TestParseCSVCreditRowSkippedNotError(t *testing.T) {
	res, _ := ParseCSV("2025-12-05,SAVE-ON-FOODS,,14.30,4500********6473\n")
	if res.Considered != 1 {
		t.Fatalf("considered = %d", res.Considered)
	}
	if res.Skipped != 1 || res.Errors != 0 || len(res.Candidates) != 0 {
		t.Fatalf("credit row must be a skip: %+v", res)
	}
}

func TestParseCSVStructuralErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"non-numeric debit", "2025-12-05,SAVE-ON-FOODS,abc,,4500********6473"},
		{"zero debit", "2025-12-05,SAVE-ON-FOODS,0,,4500********6473"},
		{"negative debit", "2025-12-05,SAVE-ON-FOODS,-5.00,,4500********6473"},
		{"empty vendor", "2025-12-05,   ,20.00,,4500********6473"},
		{"missing fields", "2025-12-05,SAVE-ON-FOODS,20.00"},
		{"extra fields", "2025-12-05,SAVE-ON-FOODS,20.00,,4500********6473,extra"},
		{"empty debit and credit", "2025-12-05,SAVE-ON-FOODS,,,4500********6473"},
	}
	for _, tc := range cases {
		res, _ := ParseCSV(tc.line)
		if res.Considered != 1 || res.Errors != 1 || len(res.Candidates) != 0 {
			t.Errorf("%s: counters = %+v", tc.name, res)
		}
	}
}

func TestParseCSVConservation(t *testing.T) {
	text := "Transaction Date,Vendor,Debit,Credit,Card\n" +
		"2025-12-01,SAVE-ON-FOODS,20.00,,4500********6473\n" +
		"2025-12-02,THRIFTY FOODS,31.10,,4500********6473\n" +
		"2025-12-03,SAVE-ON-FOODS,,9.99,4500********6473\n" + // refund
		"2025-12-04,FAIRWAY MARKET,bogus,,4500********6473\n" + // bad debit
		"not-a-date,junk\n" +
		"\n"
	res, _ := ParseCSV(text)
	if res.Considered != 4 {
		t.Fatalf("considered = %d, want 4", res.Considered)
	}
	if got := len(res.Candidates) + res.Skipped + res.Errors; got != res.Considered {
		t.Fatalf("conservation broken: %d != %d", got, res.Considered)
	}
	if len(res.Candidates) != 2 || res.Skipped != 1 || res.Errors != 1 {
		t.Fatalf("counters = %+v", res)
	}
}

func TestParseCSVDeterministicFingerprint(t *testing.T) {
	line := "2025-12-01,SAVE-ON-FOODS,20.5,,4500********6473"
	a, _ := ParseCSV(line)
	b, _ := ParseCSV(line)
	if a.Candidates[0].Fingerprint != b.Candidates[0].Fingerprint {
		t.Fatal("fingerprint not deterministic")
	}
	if a.Candidates[0].Fingerprint != "csv:2025-12-01:SAVE-ON-FOODS:20.50" {
		t.Fatalf("fingerprint = %q, amount must be 2dp", a.Candidates[0].Fingerprint)
	}
}
