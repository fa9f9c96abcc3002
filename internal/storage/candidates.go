package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const candidateColumns = `id, name, email, phone, created_at, updated_at`

// CreateCandidate stores a new candidate. It returns ErrConflict when another
// candidate already uses the same email.
func (s *Store) CreateCandidate(ctx context.Context, c Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning candidate transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM candidates WHERE email = ?`), c.Email).Scan(&taken); err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("email %q: %w", c.Email, ErrConflict)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.Name, c.Email, c.Phone, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetCandidate(ctx context.Context, id string) (Candidate, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`), id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return Candidate{}, ErrNotFound
	}
	return c, err
}

func (s *Store) ListCandidates(ctx context.Context, offset, limit int) ([]Candidate, error) {
	page, args := pageClause(offset, limit)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+candidateColumns+` FROM candidates ORDER BY created_at DESC, id`+page), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// UpdateCandidate overwrites name, email and phone of an existing candidate.
func (s *Store) UpdateCandidate(ctx context.Context, c Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning candidate transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM candidates WHERE email = ? AND id != ?`), c.Email, c.ID).Scan(&taken); err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("email %q: %w", c.Email, ErrConflict)
	}

	res, err := tx.ExecContext(ctx, s.q(`UPDATE candidates SET name = ?, email = ?, phone = ?, updated_at = ? WHERE id = ?`),
		c.Name, c.Email, c.Phone, formatTime(time.Now()), c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// DeleteCandidate removes a candidate together with their interviews.
func (s *Store) DeleteCandidate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM candidates WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCandidate(sc scanner) (Candidate, error) {
	var c Candidate
	var createdAt, updatedAt string
	if err := sc.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &createdAt, &updatedAt); err != nil {
		return Candidate{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Candidate{}, err
	}
	if c.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Candidate{}, err
	}
	return c, nil
}
