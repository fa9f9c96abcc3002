package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const interviewColumns = `id, candidate_id, job_description, status, scheduled_at, started_at, completed_at, call_sid, created_at`

func (s *Store) CreateInterview(ctx context.Context, iv Interview) error {
	if iv.Status == "" {
		iv.Status = StatusScheduled
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO interviews (`+interviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		iv.ID, iv.CandidateID, iv.JobDescription, iv.Status, formatTime(iv.ScheduledAt),
		nullTime(iv.StartedAt), nullTime(iv.CompletedAt), iv.CallSID, formatTime(iv.CreatedAt),
	)
	return err
}

func (s *Store) GetInterview(ctx context.Context, id string) (Interview, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+interviewColumns+` FROM interviews WHERE id = ?`), id)
	iv, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return Interview{}, ErrNotFound
	}
	return iv, err
}

// ListDueInterviews returns scheduled interviews whose scheduled time is at or
// before now, oldest first. Interviews with a call attempt younger than
// DialRetryAfter are left out.
func (s *Store) ListDueInterviews(ctx context.Context, now time.Time, limit int) ([]Interview, error) {
	page, args := pageClause(0, limit)
	return s.listInterviews(ctx,
		`WHERE status = ? AND scheduled_at <= ?
		AND (dial_attempted_at IS NULL OR dial_attempted_at <= ?)
		ORDER BY scheduled_at ASC`+page,
		append([]any{StatusScheduled, formatTime(now), formatTime(now.Add(-DialRetryAfter))}, args...)...)
}

// ListStaleInterviews returns in-progress interviews started before cutoff.
func (s *Store) ListStaleInterviews(ctx context.Context, cutoff time.Time, limit int) ([]Interview, error) {
	page, args := pageClause(0, limit)
	return s.listInterviews(ctx,
		`WHERE status = ? AND started_at IS NOT NULL AND started_at < ? ORDER BY started_at ASC`+page,
		append([]any{StatusInProgress, formatTime(cutoff)}, args...)...)
}

func (s *Store) ListInterviewsByCandidate(ctx context.Context, candidateID string) ([]Interview, error) {
	return s.listInterviews(ctx, `WHERE candidate_id = ? ORDER BY scheduled_at DESC`, candidateID)
}

func (s *Store) listInterviews(ctx context.Context, where string, args ...any) ([]Interview, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+interviewColumns+` FROM interviews `+where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, iv)
	}
	return results, rows.Err()
}

// MarkInProgress moves a scheduled interview to in_progress and records the
// provider call id. Any other current status yields ErrStatus.
func (s *Store) MarkInProgress(ctx context.Context, id, callSID string, startedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE interviews SET status = ?, call_sid = ?, started_at = ?
		WHERE id = ? AND status = ?`),
		StatusInProgress, callSID, formatTime(startedAt), id, StatusScheduled,
	)
	if err != nil {
		return err
	}
	return s.checkTransition(ctx, res, id)
}

// ClaimDial records a call attempt for a scheduled interview. It fails with
// ErrDialPending when another attempt was made within DialRetryAfter, so at
// most one call is being placed for an interview at a time.
func (s *Store) ClaimDial(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE interviews SET dial_attempted_at = ?
		WHERE id = ? AND status = ?
		AND (dial_attempted_at IS NULL OR dial_attempted_at <= ?)`),
		formatTime(now), id, StatusScheduled, formatTime(now.Add(-DialRetryAfter)),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	iv, err := s.GetInterview(ctx, id)
	if err != nil {
		return err
	}
	if iv.Status == StatusScheduled {
		return ErrDialPending
	}
	return s.checkTransition(ctx, res, id)
}

// ReleaseDial clears the call attempt of a scheduled interview after the
// provider rejected the call, so it can be dialed again right away.
func (s *Store) ReleaseDial(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE interviews SET dial_attempted_at = NULL
		WHERE id = ? AND status = ?`),
		id, StatusScheduled,
	)
	return err
}

// CancelInterview moves a scheduled or in-progress interview to cancelled.
func (s *Store) CancelInterview(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE interviews SET status = ?
		WHERE id = ? AND status IN (?, ?)`),
		StatusCancelled, id, StatusScheduled, StatusInProgress,
	)
	if err != nil {
		return err
	}
	return s.checkTransition(ctx, res, id)
}

// checkTransition turns a zero-row conditional update into ErrNotFound or
// ErrStatus depending on whether the interview exists.
func (s *Store) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	iv, err := s.GetInterview(ctx, id)
	if err != nil {
		return err
	}
	if iv.Status == StatusCompleted {
		return ErrCompleted
	}
	return fmt.Errorf("interview %s is %s: %w", id, iv.Status, ErrStatus)
}

func scanInterview(sc scanner) (Interview, error) {
	var iv Interview
	var scheduledAt, createdAt string
	var startedAt, completedAt sql.NullString
	if err := sc.Scan(&iv.ID, &iv.CandidateID, &iv.JobDescription, &iv.Status, &scheduledAt,
		&startedAt, &completedAt, &iv.CallSID, &createdAt); err != nil {
		return Interview{}, err
	}
	var err error
	if iv.ScheduledAt, err = parseTime("scheduled_at", scheduledAt); err != nil {
		return Interview{}, err
	}
	if iv.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Interview{}, err
	}
	if iv.StartedAt, err = parseNullTime("started_at", startedAt); err != nil {
		return Interview{}, err
	}
	if iv.CompletedAt, err = parseNullTime("completed_at", completedAt); err != nil {
		return Interview{}, err
	}
	return iv, nil
}

// --- Question sequence ---

// SaveQuestions persists the question sequence of an interview unless one is
// already stored, and returns the stored sequence. Concurrent callers converge
// on the sequence written by whichever transaction committed first.
func (s *Store) SaveQuestions(ctx context.Context, interviewID string, qs []Question) ([]Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning questions transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, s.q(`SELECT id FROM interviews WHERE id = ?`+s.lockRow()), interviewID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.queryQuestions(ctx, tx, interviewID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	stored := make([]Question, 0, len(qs))
	for i, q := range qs {
		q.Index = i
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO interview_questions (interview_id, question_index, text, criteria, skill, difficulty)
			VALUES (?, ?, ?, ?, ?, ?)`),
			interviewID, q.Index, q.Text, q.Criteria, q.Skill, q.Difficulty,
		); err != nil {
			return nil, fmt.Errorf("inserting question %d: %w", i, err)
		}
		stored = append(stored, q)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing questions: %w", err)
	}
	return stored, nil
}

// ListQuestions returns the persisted question sequence ordered by index.
// An interview without a stored sequence yields an empty slice.
func (s *Store) ListQuestions(ctx context.Context, interviewID string) ([]Question, error) {
	return s.queryQuestions(ctx, s.db, interviewID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) queryQuestions(ctx context.Context, qr querier, interviewID string) ([]Question, error) {
	rows, err := qr.QueryContext(ctx, s.q(`
		SELECT question_index, text, criteria, skill, difficulty
		FROM interview_questions WHERE interview_id = ? ORDER BY question_index ASC`), interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.Index, &q.Text, &q.Criteria, &q.Skill, &q.Difficulty); err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}
