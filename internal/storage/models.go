package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would violate a uniqueness rule
	// that is checked in code (candidate email).
	ErrConflict = errors.New("conflict")
	// ErrCompleted is returned when a write targets an interview that has
	// already reached the completed status.
	ErrCompleted = errors.New("interview already completed")
	// ErrInactive is returned when a write targets a cancelled interview.
	ErrInactive = errors.New("interview is not active")
	// ErrOutOfOrder is returned by RecordAnswer when the answer index is ahead
	// of the number of answers stored so far.
	ErrOutOfOrder = errors.New("answer index ahead of progress")
	// ErrStatus is returned when a status transition is not allowed from the
	// interview's current status.
	ErrStatus = errors.New("invalid status transition")
	// ErrDialPending is returned by ClaimDial while an earlier call attempt
	// for the interview may still connect.
	ErrDialPending = errors.New("call attempt pending")
)

// DialRetryAfter is how long a call attempt blocks another one for the same
// scheduled interview. A call that connects moves the interview to
// in_progress well within this window.
const DialRetryAfter = 10 * time.Minute

// Interview statuses.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

type Candidate struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Interview struct {
	ID             string
	CandidateID    string
	JobDescription string
	Status         string // "scheduled", "in_progress", "completed", "cancelled"
	ScheduledAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CallSID        string
	CreatedAt      time.Time
}

// Question is one entry of the persisted question sequence of an interview.
type Question struct {
	Index      int
	Text       string
	Criteria   string
	Skill      string
	Difficulty string
}

// Response is an immutable answer to a single question. An empty RawAnswer
// records that the candidate did not answer before the gather timed out.
type Response struct {
	ID            string
	InterviewID   string
	QuestionIndex int
	QuestionText  string
	RawAnswer     string
	CreatedAt     time.Time
}

// AnswerOutcome reports what RecordAnswer did.
type AnswerOutcome struct {
	// Inserted is true only for the call that created the response row.
	Inserted bool
	// Answered is the number of responses stored for the interview after the call.
	Answered int
}

type Report struct {
	ID               string
	InterviewID      string
	OverallScore     float64
	Strengths        []string // JSON array stored as text
	Weaknesses       []string // JSON array stored as text
	DetailedAnalysis string
	Recommendations  string
	HiringDecision   string
	CreatedAt        time.Time
}
