package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recruitx/recruitx/internal/observability"
	"github.com/recruitx/recruitx/internal/storage"
)

// QuestionSource returns the persisted question sequence of an interview,
// generating it on first use. An empty result means generation failed.
type QuestionSource interface {
	Questions(ctx context.Context, iv storage.Interview) ([]storage.Question, error)
}

// Dialer places the outbound call for an interview and returns the
// provider's call id. Errors after which the call may still have been placed
// wrap ErrCallUnconfirmed.
type Dialer interface {
	PlaceCall(ctx context.Context, to, interviewID string) (string, error)
}

// Service implements the interview lifecycle operations behind the
// management API, the CLI and the scheduler.
type Service struct {
	store     *storage.Store
	questions QuestionSource
	dialer    Dialer
	synth     *Synthesizer
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store *storage.Store, questions QuestionSource, dialer Dialer, synth *Synthesizer, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		questions: questions,
		dialer:    dialer,
		synth:     synth,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

type ScheduleInput struct {
	CandidateID    string
	JobDescription string
	ScheduledAt    time.Time
}

type Scheduled struct {
	InterviewID string
	Questions   []storage.Question
}

// Schedule creates a scheduled interview and tries to generate its questions.
// A generation failure is not an error: the interview is created with an
// empty question list and generation is retried when the call starts.
func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (Scheduled, error) {
	in.CandidateID = strings.TrimSpace(in.CandidateID)
	in.JobDescription = strings.TrimSpace(in.JobDescription)
	if in.CandidateID == "" {
		return Scheduled{}, validationf("candidate_id is required")
	}
	if in.JobDescription == "" {
		return Scheduled{}, validationf("job_description is required")
	}
	if in.ScheduledAt.IsZero() {
		return Scheduled{}, validationf("scheduled_at is required")
	}
	if _, err := s.store.GetCandidate(ctx, in.CandidateID); err != nil {
		return Scheduled{}, Translate(err)
	}

	iv := storage.Interview{
		ID:             uuid.NewString(),
		CandidateID:    in.CandidateID,
		JobDescription: in.JobDescription,
		Status:         storage.StatusScheduled,
		ScheduledAt:    in.ScheduledAt.UTC(),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateInterview(ctx, iv); err != nil {
		return Scheduled{}, Translate(err)
	}
	s.metrics.Transition(storage.StatusScheduled)
	s.logger.Info("interview scheduled", "interview_id", iv.ID, "candidate_id", iv.CandidateID, "scheduled_at", iv.ScheduledAt)

	qs, err := s.questions.Questions(ctx, iv)
	if err != nil {
		s.logger.Warn("loading questions for new interview", "interview_id", iv.ID, "error", err)
		qs = nil
	}
	return Scheduled{InterviewID: iv.ID, Questions: nonNilQuestions(qs)}, nil
}

type Started struct {
	CallSID   string
	Questions []storage.Question
}

// Start places the outbound call for a scheduled interview. The interview
// moves to in_progress only once the provider accepted the call. A call
// attempt is recorded before dialing; when its outcome is unknown, further
// attempts are refused for storage.DialRetryAfter.
func (s *Service) Start(ctx context.Context, id string) (Started, error) {
	iv, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return Started{}, Translate(err)
	}
	switch iv.Status {
	case storage.StatusCompleted:
		return Started{}, ErrAlreadyComplete
	case storage.StatusCancelled:
		return Started{}, validationf("interview %s is cancelled", id)
	case storage.StatusInProgress:
		return Started{}, validationf("interview %s is already in progress", id)
	}

	cand, err := s.store.GetCandidate(ctx, iv.CandidateID)
	if err != nil {
		return Started{}, Translate(err)
	}

	qs, err := s.questions.Questions(ctx, iv)
	if err != nil {
		return Started{}, err
	}
	if len(qs) == 0 {
		return Started{}, upstream("generating questions", errors.New("no questions available"))
	}

	if err := s.store.ClaimDial(ctx, id, s.now()); err != nil {
		if errors.Is(err, storage.ErrDialPending) {
			return Started{}, validationf("a call for interview %s was attempted less than %s ago and may still connect", id, storage.DialRetryAfter)
		}
		return Started{}, Translate(err)
	}

	sid, err := s.dialer.PlaceCall(ctx, cand.Phone, iv.ID)
	s.metrics.Call(err)
	if err != nil {
		if errors.Is(err, ErrCallUnconfirmed) {
			s.logger.Error("call outcome unknown, holding further attempts", "interview_id", id, "retry_after", storage.DialRetryAfter, "error", err)
		} else {
			s.logger.Error("placing call failed", "interview_id", id, "error", err)
			if rerr := s.store.ReleaseDial(ctx, id); rerr != nil {
				s.logger.Warn("releasing call attempt", "interview_id", id, "error", rerr)
			}
		}
		return Started{}, upstream("placing call", err)
	}

	if err := s.store.MarkInProgress(ctx, id, sid, s.now()); err != nil {
		s.logger.Error("call placed but interview not marked in progress", "interview_id", id, "call_sid", sid, "error", err)
		return Started{}, Translate(err)
	}
	s.metrics.Transition(storage.StatusInProgress)
	s.logger.Info("interview started", "interview_id", id, "call_sid", sid, "questions", len(qs))
	return Started{CallSID: sid, Questions: qs}, nil
}

type Status struct {
	InterviewID    string
	CandidateID    string
	Status         string
	ScheduledAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CallSID        string
	Answered       int
	TotalQuestions int
}

func (s *Service) Status(ctx context.Context, id string) (Status, error) {
	iv, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return Status{}, Translate(err)
	}
	answered, err := s.store.CountResponses(ctx, id)
	if err != nil {
		return Status{}, err
	}
	qs, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return Status{}, err
	}
	return Status{
		InterviewID:    iv.ID,
		CandidateID:    iv.CandidateID,
		Status:         iv.Status,
		ScheduledAt:    iv.ScheduledAt,
		StartedAt:      iv.StartedAt,
		CompletedAt:    iv.CompletedAt,
		CallSID:        iv.CallSID,
		Answered:       answered,
		TotalQuestions: len(qs),
	}, nil
}

// Complete synthesizes the report of an interview on demand. It is how an
// operator retries after report generation failed at the end of a call.
func (s *Service) Complete(ctx context.Context, id string) (storage.Report, error) {
	return s.synth.Synthesize(ctx, id)
}

// Cancel stops a scheduled or in-progress interview.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.store.CancelInterview(ctx, id); err != nil {
		return Translate(err)
	}
	s.metrics.Transition(storage.StatusCancelled)
	s.logger.Info("interview cancelled", "interview_id", id)
	return nil
}

// Responses returns the answers recorded for an interview so far.
func (s *Service) Responses(ctx context.Context, id string) ([]storage.Response, error) {
	if _, err := s.store.GetInterview(ctx, id); err != nil {
		return nil, Translate(err)
	}
	return s.store.ListResponses(ctx, id)
}

func nonNilQuestions(qs []storage.Question) []storage.Question {
	if qs == nil {
		return []storage.Question{}
	}
	return qs
}
