package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dispensa/internal/core"
)

func (s *SQLiteStore) CreateCycle(ctx context.Context, c *core.Cycle) error {
	var exists int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM cycles WHERE month_key = ?", c.MonthKey,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check month key: %w", err)
	}
	if exists > 0 {
		return core.Conflictf("cycle %s already exists", c.MonthKey)
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO cycles (id, month_key, label, start_date, end_date, finalized, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MonthKey, c.Label, c.StartDate.String(), c.EndDate.String(),
		boolToInt(c.Finalized), c.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

const cycleColumns = "id, month_key, label, start_date, end_date, finalized, created_at"

func (s *SQLiteStore) GetCycle(ctx context.Context, id string) (*core.Cycle, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE id = ?", id)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFoundf("cycle %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetCycleByMonth(ctx context.Context, monthKey string) (*core.Cycle, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE month_key = ?", monthKey)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFoundf("cycle %s", monthKey)
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle by month: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCycles(ctx context.Context) ([]core.Cycle, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+cycleColumns+" FROM cycles ORDER BY month_key DESC")
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var out []core.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SetCycleFinalized(ctx context.Context, id string, finalized bool) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE cycles SET finalized = ? WHERE id = ?", boolToInt(finalized), id)
	if err != nil {
		return fmt.Errorf("set cycle finalized: %w", err)
	}
	return requireAffected(res, "cycle", id)
}

// DeleteCycle removes a cycle; child rows go with it via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteCycle(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM cycles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete cycle: %w", err)
	}
	return requireAffected(res, "cycle", id)
}

func scanCycle(r rowScanner) (*core.Cycle, error) {
	var (
		c          core.Cycle
		start, end string
		finalized  int
		createdAt  int64
	)
	if err := r.Scan(&c.ID, &c.MonthKey, &c.Label, &start, &end, &finalized, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if c.StartDate, err = core.ParseDate(start); err != nil {
		return nil, fmt.Errorf("stored start date: %w", err)
	}
	if c.EndDate, err = core.ParseDate(end); err != nil {
		return nil, fmt.Errorf("stored end date: %w", err)
	}
	c.Finalized = finalized != 0
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &c, nil
}
