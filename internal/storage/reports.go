package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const reportColumns = `r.id, r.interview_id, r.overall_score, r.strengths, r.weaknesses, r.detailed_analysis, r.recommendations, r.hiring_decision, r.created_at`

// CompleteWithReport inserts the report and moves its interview to completed
// in one transaction. If the interview is already completed nothing is
// written and ErrCompleted is returned, so an interview gets at most one report.
// A cancelled interview stays cancelled and ErrInactive is returned.
func (s *Store) CompleteWithReport(ctx context.Context, rep Report, completedAt time.Time) error {
	strengths, err := json.Marshal(nonNil(rep.Strengths))
	if err != nil {
		return fmt.Errorf("encoding strengths: %w", err)
	}
	weaknesses, err := json.Marshal(nonNil(rep.Weaknesses))
	if err != nil {
		return fmt.Errorf("encoding weaknesses: %w", err)
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = completedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning report transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, s.q(`SELECT status FROM interviews WHERE id = ?`+s.lockRow()), rep.InterviewID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := finalStatusErr(status); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE interviews SET status = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`),
		StatusCompleted, formatTime(completedAt), rep.InterviewID, StatusScheduled, StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("completing interview: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		if err := tx.QueryRowContext(ctx, s.q(`SELECT status FROM interviews WHERE id = ?`), rep.InterviewID).Scan(&status); err != nil {
			return err
		}
		if err := finalStatusErr(status); err != nil {
			return err
		}
		return ErrCompleted
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO reports (id, interview_id, overall_score, strengths, weaknesses, detailed_analysis, recommendations, hiring_decision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rep.ID, rep.InterviewID, rep.OverallScore, string(strengths), string(weaknesses),
		rep.DetailedAnalysis, rep.Recommendations, rep.HiringDecision, formatTime(rep.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}

	return tx.Commit()
}

// finalStatusErr reports why an interview in status can no longer be completed.
func finalStatusErr(status string) error {
	switch status {
	case StatusCompleted:
		return ErrCompleted
	case StatusCancelled:
		return ErrInactive
	}
	return nil
}

func (s *Store) GetReportByInterview(ctx context.Context, interviewID string) (Report, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+reportColumns+` FROM reports r WHERE r.interview_id = ?`), interviewID)
	rep, err := scanReport(row)
	if err == sql.ErrNoRows {
		return Report{}, ErrNotFound
	}
	return rep, err
}

// ListReports returns reports newest first. A non-positive limit returns all.
func (s *Store) ListReports(ctx context.Context, offset, limit int) ([]Report, error) {
	page, args := pageClause(offset, limit)
	return s.listReports(ctx, `ORDER BY r.created_at DESC, r.id`+page, args...)
}

// ListReportsByCandidate returns the reports of every interview of a candidate.
func (s *Store) ListReportsByCandidate(ctx context.Context, candidateID string) ([]Report, error) {
	return s.listReports(ctx, `JOIN interviews i ON i.id = r.interview_id
		WHERE i.candidate_id = ? ORDER BY r.created_at DESC, r.id`, candidateID)
}

func (s *Store) listReports(ctx context.Context, tail string, args ...any) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+reportColumns+` FROM reports r `+tail), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rep)
	}
	return results, rows.Err()
}

func scanReport(sc scanner) (Report, error) {
	var rep Report
	var strengths, weaknesses, createdAt string
	if err := sc.Scan(&rep.ID, &rep.InterviewID, &rep.OverallScore, &strengths, &weaknesses,
		&rep.DetailedAnalysis, &rep.Recommendations, &rep.HiringDecision, &createdAt); err != nil {
		return Report{}, err
	}
	if err := json.Unmarshal([]byte(strengths), &rep.Strengths); err != nil {
		return Report{}, fmt.Errorf("decoding strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(weaknesses), &rep.Weaknesses); err != nil {
		return Report{}, fmt.Errorf("decoding weaknesses: %w", err)
	}
	var err error
	if rep.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Report{}, err
	}
	return rep, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
