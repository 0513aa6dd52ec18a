package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dispensa/internal/core"
)

// Amounts are persisted as decimal strings, never floats, so what goes in
// comes back out exactly.

const transactionColumns = "id, cycle_id, date, merchant, amount, source, fingerprint, verified, notes"

func (s *SQLiteStore) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	fingerprint := sql.NullString{String: t.Fingerprint, Valid: t.Fingerprint != ""}
	if fingerprint.Valid {
		existing, err := s.FindTransactionByFingerprint(ctx, t.Fingerprint)
		if err != nil {
			return err
		}
		if existing != nil {
			return core.Conflictf("fingerprint %q already present", t.Fingerprint)
		}
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO transactions (id, cycle_id, date, merchant, amount, source, fingerprint, verified, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CycleID, t.Date.String(), t.Merchant, t.Amount.String(),
		string(t.Source), fingerprint, boolToInt(t.Verified), t.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFoundf("transaction %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, cycleID string) ([]core.Transaction, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE cycle_id = ? ORDER BY date, id", cycleID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SetTransactionVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE transactions SET verified = ? WHERE id = ?", boolToInt(verified), id)
	if err != nil {
		return fmt.Errorf("set transaction verified: %w", err)
	}
	return requireAffected(res, "transaction", id)
}

func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, "transaction", id)
}

// FindTransactionByFingerprint searches the whole ledger, not one cycle, and
// returns (nil, nil) when the fingerprint is unknown.
func (s *SQLiteStore) FindTransactionByFingerprint(ctx context.Context, fingerprint string) (*core.Transaction, error) {
	if fingerprint == "" {
		return nil, nil
	}
	row := s.q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE fingerprint = ?", fingerprint)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by fingerprint: %w", err)
	}
	return t, nil
}

func scanTransaction(r rowScanner) (*core.Transaction, error) {
	var (
		t           core.Transaction
		date        string
		amount      string
		source      string
		fingerprint sql.NullString
		verified    int
	)
	if err := r.Scan(&t.ID, &t.CycleID, &date, &t.Merchant, &amount, &source, &fingerprint, &verified, &t.Notes); err != nil {
		return nil, err
	}
	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return nil, fmt.Errorf("stored date: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("stored amount: %w", err)
	}
	t.Source = core.Source(source)
	t.Fingerprint = fingerprint.String
	t.Verified = verified != 0
	return &t, nil
}

// Consumption entries

func (s *SQLiteStore) UpsertConsumptionEntry(ctx context.Context, e *core.ConsumptionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	// Last write wins at the (cycle, person) natural key. On conflict the
	// stored row keeps its id; RETURNING hands it back so the caller sees
	// the persisted one either way.
	row := s.q.QueryRowContext(ctx,
		`INSERT INTO consumption_entries (id, cycle_id, person_id, weight, notes)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (cycle_id, person_id)
		 DO UPDATE SET weight = excluded.weight, notes = excluded.notes
		 RETURNING id`,
		e.ID, e.CycleID, e.PersonID, e.Weight, e.Notes,
	)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("upsert consumption entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListConsumptionEntries(ctx context.Context, cycleID string) ([]core.ConsumptionEntry, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, cycle_id, person_id, weight, notes FROM consumption_entries WHERE cycle_id = ? ORDER BY person_id", cycleID)
	if err != nil {
		return nil, fmt.Errorf("list consumption entries: %w", err)
	}
	defer rows.Close()

	var out []core.ConsumptionEntry
	for rows.Next() {
		var e core.ConsumptionEntry
		if err := rows.Scan(&e.ID, &e.CycleID, &e.PersonID, &e.Weight, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan consumption entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consumption entries: %w", err)
	}
	return out, nil
}

// Personal payments

func (s *SQLiteStore) CreatePayment(ctx context.Context, p *core.PersonalPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	date := sql.NullString{String: p.Date.String(), Valid: !p.Date.IsEmpty()}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO personal_payments (id, cycle_id, person_id, amount, note, date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CycleID, p.PersonID, p.Amount.String(), p.Note, date,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPayment(ctx context.Context, id string) (*core.PersonalPayment, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, cycle_id, person_id, amount, note, date FROM personal_payments WHERE id = ?", id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFoundf("payment %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPayments(ctx context.Context, cycleID string) ([]core.PersonalPayment, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, cycle_id, person_id, amount, note, date FROM personal_payments WHERE cycle_id = ? ORDER BY id", cycleID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []core.PersonalPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeletePayment(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM personal_payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return requireAffected(res, "payment", id)
}

func scanPayment(r rowScanner) (*core.PersonalPayment, error) {
	var (
		p      core.PersonalPayment
		amount string
		date   sql.NullString
	)
	if err := r.Scan(&p.ID, &p.CycleID, &p.PersonID, &amount, &p.Note, &date); err != nil {
		return nil, err
	}
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("stored amount: %w", err)
	}
	if date.Valid && date.String != "" {
		if p.Date, err = core.ParseDate(date.String); err != nil {
			return nil, fmt.Errorf("stored payment date: %w", err)
		}
	}
	return &p, nil
}
