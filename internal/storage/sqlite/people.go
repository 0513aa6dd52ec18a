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

func (s *SQLiteStore) CreatePerson(ctx context.Context, p *core.Person) error {
	var exists int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM people WHERE name = ?", p.Name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check person name: %w", err)
	}
	if exists > 0 {
		return core.Conflictf("person %q already exists", p.Name)
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err = s.q.ExecContext(ctx,
		"INSERT INTO people (id, name, active, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Name, boolToInt(p.Active), p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPerson(ctx context.Context, id string) (*core.Person, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, name, active, created_at FROM people WHERE id = ?", id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NotFoundf("person %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPeople(ctx context.Context, activeOnly bool) ([]core.Person, error) {
	query := "SELECT id, name, active, created_at FROM people ORDER BY name"
	if activeOnly {
		query = "SELECT id, name, active, created_at FROM people WHERE active = 1 ORDER BY name"
	}
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var out []core.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdatePerson(ctx context.Context, p *core.Person) error {
	var taken int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM people WHERE name = ? AND id != ?", p.Name, p.ID,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("check person name: %w", err)
	}
	if taken > 0 {
		return core.Conflictf("person %q already exists", p.Name)
	}

	res, err := s.q.ExecContext(ctx,
		"UPDATE people SET name = ?, active = ? WHERE id = ?",
		p.Name, boolToInt(p.Active), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return requireAffected(res, "person", p.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(r rowScanner) (*core.Person, error) {
	var (
		p         core.Person
		active    int
		createdAt int64
	)
	if err := r.Scan(&p.ID, &p.Name, &active, &createdAt); err != nil {
		return nil, err
	}
	p.Active = active != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFoundf("%s %s", entity, id)
	}
	return nil
}
