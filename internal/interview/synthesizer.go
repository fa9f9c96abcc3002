package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/recruitx/recruitx/internal/llm"
	"github.com/recruitx/recruitx/internal/observability"
	"github.com/recruitx/recruitx/internal/storage"
)

// ReportWriter evaluates an answered interview.
type ReportWriter interface {
	GenerateReport(ctx context.Context, jobDescription string, answers []llm.Answer) (llm.Evaluation, error)
}

// Notice describes a freshly stored report for notifiers.
type Notice struct {
	InterviewID   string
	CandidateName string
	Report        storage.Report
}

// Notifier is told about every report the Synthesizer stores. Implementations
// must not block for long; failures are theirs to log.
type Notifier interface {
	ReportReady(ctx context.Context, n Notice)
}

// Synthesizer turns the stored answers of an interview into a report and
// completes the interview in the same transaction.
type Synthesizer struct {
	store    *storage.Store
	writer   ReportWriter
	notifier Notifier
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// SynthesizerOption customizes a Synthesizer.
type SynthesizerOption func(*Synthesizer)

func WithNotifier(n Notifier) SynthesizerOption {
	return func(s *Synthesizer) { s.notifier = n }
}

func WithSynthesizerMetrics(m *observability.Metrics) SynthesizerOption {
	return func(s *Synthesizer) { s.metrics = m }
}

func NewSynthesizer(store *storage.Store, writer ReportWriter, logger *slog.Logger, opts ...SynthesizerOption) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synthesizer{store: store, writer: writer, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize evaluates the interview and stores the report. It returns
// ErrAlreadyComplete without calling the model when the interview is already
// completed, and also when another caller completes it first. A cancelled
// interview is never completed; that returns ErrCancelled.
func (s *Synthesizer) Synthesize(ctx context.Context, interviewID string) (storage.Report, error) {
	iv, err := s.store.GetInterview(ctx, interviewID)
	if err != nil {
		return storage.Report{}, Translate(err)
	}
	switch iv.Status {
	case storage.StatusCompleted:
		return storage.Report{}, ErrAlreadyComplete
	case storage.StatusCancelled:
		return storage.Report{}, ErrCancelled
	}

	responses, err := s.store.ListResponses(ctx, interviewID)
	if err != nil {
		return storage.Report{}, fmt.Errorf("loading responses: %w", err)
	}
	qs, err := s.store.ListQuestions(ctx, interviewID)
	if err != nil {
		return storage.Report{}, fmt.Errorf("loading questions: %w", err)
	}
	criteria := make(map[int]string, len(qs))
	for _, q := range qs {
		criteria[q.Index] = q.Criteria
	}

	answers := make([]llm.Answer, len(responses))
	for i, r := range responses {
		answers[i] = llm.Answer{
			Question: r.QuestionText,
			Criteria: criteria[r.QuestionIndex],
			Response: r.RawAnswer,
		}
	}

	start := time.Now()
	ev, err := s.writer.GenerateReport(ctx, iv.JobDescription, answers)
	s.metrics.LLMRequest("report", err, time.Since(start))
	if err != nil {
		return storage.Report{}, upstream("generating report", err)
	}

	now := s.now().UTC()
	rep := storage.Report{
		ID:               uuid.NewString(),
		InterviewID:      interviewID,
		OverallScore:     ev.OverallScore,
		Strengths:        nonNil(ev.Strengths),
		Weaknesses:       nonNil(ev.Weaknesses),
		DetailedAnalysis: ev.DetailedAnalysis,
		Recommendations:  ev.Recommendations,
		HiringDecision:   ev.HiringDecision,
		CreatedAt:        now,
	}
	if err := s.store.CompleteWithReport(ctx, rep, now); err != nil {
		switch {
		case errors.Is(err, storage.ErrCompleted):
			s.logger.Info("interview completed concurrently, discarding report", "interview_id", interviewID)
		case errors.Is(err, storage.ErrInactive):
			s.logger.Info("interview cancelled during synthesis, discarding report", "interview_id", interviewID)
		}
		return storage.Report{}, Translate(err)
	}
	s.metrics.Transition(storage.StatusCompleted)
	s.logger.Info("interview completed", "interview_id", interviewID, "answers", len(responses), "score", rep.OverallScore)

	if s.notifier != nil {
		notice := Notice{InterviewID: interviewID, Report: rep}
		if c, err := s.store.GetCandidate(ctx, iv.CandidateID); err == nil {
			notice.CandidateName = c.Name
		}
		s.notifier.ReportReady(ctx, notice)
	}
	return rep, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
