package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordAnswer stores the answer to one question at most once. In a single
// transaction it checks that the interview is still active and that the
// answer index is not ahead of the stored progress, then inserts the response
// unless one already exists for (interview, index).
//
// It returns ErrNotFound, ErrCompleted, ErrInactive or ErrOutOfOrder without
// writing anything when the corresponding check fails.
func (s *Store) RecordAnswer(ctx context.Context, r Response) (AnswerOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("beginning answer transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, s.q(`SELECT status FROM interviews WHERE id = ?`+s.lockRow()), r.InterviewID).Scan(&status)
	if err == sql.ErrNoRows {
		return AnswerOutcome{}, ErrNotFound
	}
	if err != nil {
		return AnswerOutcome{}, err
	}
	switch status {
	case StatusCompleted:
		return AnswerOutcome{}, ErrCompleted
	case StatusCancelled:
		return AnswerOutcome{}, ErrInactive
	}

	var answered int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM interview_responses WHERE interview_id = ?`), r.InterviewID).Scan(&answered); err != nil {
		return AnswerOutcome{}, err
	}
	if r.QuestionIndex > answered {
		return AnswerOutcome{Answered: answered}, ErrOutOfOrder
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO interview_responses (id, interview_id, question_index, question_text, raw_answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (interview_id, question_index) DO NOTHING`),
		r.ID, r.InterviewID, r.QuestionIndex, r.QuestionText, r.RawAnswer, formatTime(r.CreatedAt),
	)
	if err != nil {
		return AnswerOutcome{}, fmt.Errorf("inserting response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AnswerOutcome{}, err
	}

	if err := tx.Commit(); err != nil {
		return AnswerOutcome{}, fmt.Errorf("committing answer: %w", err)
	}
	return AnswerOutcome{Inserted: n == 1, Answered: answered + int(n)}, nil
}

// ListResponses returns the responses of an interview ordered by question index.
func (s *Store) ListResponses(ctx context.Context, interviewID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, interview_id, question_index, question_text, raw_answer, created_at
		FROM interview_responses WHERE interview_id = ? ORDER BY question_index ASC`), interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Response
	for rows.Next() {
		var r Response
		var createdAt string
		if err := rows.Scan(&r.ID, &r.InterviewID, &r.QuestionIndex, &r.QuestionText, &r.RawAnswer, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountResponses returns how many questions of an interview have an answer.
func (s *Store) CountResponses(ctx context.Context, interviewID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM interview_responses WHERE interview_id = ?`), interviewID).Scan(&n)
	return n, err
}
