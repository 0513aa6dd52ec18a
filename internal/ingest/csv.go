package ingest

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"dispensa/internal/core"
)

// Card export layout, one transaction per line:
//
//	date,vendor,debit,credit,card_number
//
// date is YYYY-MM-DD; vendor may be double-quoted with ""-escaped embedded
// quotes. Lines whose first field is not a date (headers, footers) are
// ignored without counting anywhere.
const csvFieldCount = 5

var csvDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// CSVResult is the outcome of parsing one export. Conservation:
// Considered == len(Candidates) + Skipped + Errors. Candidates still have to
// clear fingerprint dedup at merge time, which moves some of them into the
// caller's skip bucket.
type CSVResult struct {
	Candidates []Normalized
	Considered int
	Skipped    int // credit/refund rows, never expenses
	Errors     int // rows failing a structural check
}

// ParseCSV parses raw export text. Row-level failures are counted, never
// fatal; only the debit column is honored, so refund rows (credit populated,
// debit empty) are skipped without counting as errors.
func ParseCSV(text string) (CSVResult, error) {
	var res CSVResult

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields, err := splitCSVLine(line)
		if err != nil {
			// Unparseable quoting on a non-header line. We cannot see the
			// first field, so treat it as a structural error only when the
			// line plausibly starts with a date.
			if csvDateRe.MatchString(firstToken(line)) {
				res.Considered++
				res.Errors++
			}
			continue
		}
		if len(fields) == 0 || !csvDateRe.MatchString(strings.TrimSpace(fields[0])) {
			continue // header or trailer line
		}

		res.Considered++

		norm, ok, structural := normalizeCSVRow(fields)
		switch {
		case ok:
			res.Candidates = append(res.Candidates, norm)
		case structural:
			res.Errors++
		default:
			res.Skipped++
		}
	}

	return res, nil
}

// normalizeCSVRow returns (row, accepted, structuralError). A refund row is
// neither accepted nor a structural error.
func normalizeCSVRow(fields []string) (Normalized, bool, bool) {
	if len(fields) != csvFieldCount {
		return Normalized{}, false, true
	}

	date, err := core.ParseDate(strings.TrimSpace(fields[0]))
	if err != nil {
		return Normalized{}, false, true
	}

	vendor := truncateMerchant(fields[1])
	if vendor == "" {
		return Normalized{}, false, true
	}

	debit := strings.TrimSpace(fields[2])
	credit := strings.TrimSpace(fields[3])
	if debit == "" && credit != "" {
		return Normalized{}, false, false // refund/credit row
	}

	amount, err := decimal.NewFromString(debit)
	if err != nil || !amount.IsPositive() {
		return Normalized{}, false, true
	}

	amount = amount.Round(2)
	return Normalized{
		Date:        date,
		Merchant:    vendor,
		Amount:      amount,
		Source:      core.SourceCSVImport,
		Fingerprint: csvFingerprint(date, vendor, amount),
	}, true, false
}

// csvFingerprint is the sole defense against re-importing the same export or
// overlapping date ranges: exports carry no native transaction id, so the
// row's own content has to serve.
func csvFingerprint(date core.Date, vendor string, amount decimal.Decimal) string {
	return fmt.Sprintf("csv:%s:%s:%s", date, vendor, amount.StringFixed(2))
}

func splitCSVLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	return r.Read()
}

func firstToken(line string) string {
	if i := strings.IndexByte(line, ','); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return strings.TrimSpace(line)
}
