// Package dialogue drives an interview call through stateless telephony
// webhooks. Every callback rebuilds its position in the interview from the
// URL and the stored interview, question sequence and answers, so duplicate,
// late and out-of-order deliveries are all decided from persisted state.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/observability"
	"github.com/recruitx/recruitx/internal/storage"
	"github.com/recruitx/recruitx/internal/twiml"
)

// Result is the outcome of one webhook: the script to play, or the failure
// that prevented building one.
type Result struct {
	Script twiml.Script
	Err    error
}

func ok(s twiml.Script) Result { return Result{Script: s} }
func fail(err error) Result    { return Result{Err: err} }

// ReportSynthesizer completes an interview once every question is answered.
type ReportSynthesizer interface {
	Synthesize(ctx context.Context, interviewID string) (storage.Report, error)
}

// Config controls the gather prompts and the callback URLs.
type Config struct {
	// PublicBaseURL is the externally reachable origin of this service.
	PublicBaseURL string
	// GatherTimeout is how many seconds a gather waits for the caller.
	GatherTimeout int
}

// Engine answers the telephony webhooks of interview calls.
type Engine struct {
	store     *storage.Store
	questions interview.QuestionSource
	synth     ReportSynthesizer
	cfg       Config
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewEngine builds an Engine. A non-positive GatherTimeout defaults to 8 seconds.
func NewEngine(store *storage.Store, questions interview.QuestionSource, synth ReportSynthesizer, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = 8
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, questions: questions, synth: synth, cfg: cfg, metrics: metrics, logger: logger}
}

// AnswerURL is the callback that receives the answer to question index.
func (e *Engine) AnswerURL(interviewID string, index int) string {
	return fmt.Sprintf("%s/api/v1/interviews/%s/response/%d", e.cfg.PublicBaseURL, interviewID, index)
}

// Enter greets the candidate and asks the first unanswered question. A fresh
// interview starts at question 0; a re-delivered entry callback resumes.
// An interview still marked scheduled moves to in_progress here, which
// covers calls that connected although placing them reported a failure.
func (e *Engine) Enter(ctx context.Context, interviewID, callSID string) Result {
	iv, qs, err := e.load(ctx, interviewID)
	if err != nil {
		return fail(err)
	}
	if iv.Status == storage.StatusScheduled {
		err := e.store.MarkInProgress(ctx, interviewID, callSID, time.Now())
		switch {
		case err == nil:
			e.metrics.Transition(storage.StatusInProgress)
			e.logger.Info("interview started by incoming call", "interview_id", interviewID, "call_sid", callSID)
		case errors.Is(err, storage.ErrStatus):
			// Started concurrently.
		default:
			return fail(interview.Translate(err))
		}
	}

	cand, err := e.store.GetCandidate(ctx, iv.CandidateID)
	if err != nil {
		return fail(interview.Translate(err))
	}

	answered, err := e.store.CountResponses(ctx, interviewID)
	if err != nil {
		return fail(err)
	}
	if answered >= len(qs) {
		// Every answer is stored but the report is missing.
		return e.finish(ctx, interviewID)
	}

	script := twiml.Script{
		twiml.Say{Text: fmt.Sprintf(greetingFormat, cand.Name, jobRole(iv.JobDescription))},
		twiml.Pause{Seconds: 1},
		e.gather(interviewID, qs, answered),
	}
	e.logger.Info("interview call entered", "interview_id", interviewID, "question_index", answered)
	return ok(script)
}

// Answer records the reply to question index and moves to the next one.
func (e *Engine) Answer(ctx context.Context, interviewID string, index int, input string) Result {
	iv, qs, err := e.load(ctx, interviewID)
	if err != nil {
		return fail(err)
	}
	if index < 0 || index >= len(qs) {
		return fail(fmt.Errorf("%w: question %d of %d", interview.ErrAlreadyComplete, index, len(qs)))
	}

	input = strings.TrimSpace(input)
	if IsRepeat(input) {
		e.metrics.Answer("repeat")
		return ok(twiml.Script{e.gather(interviewID, qs, index)})
	}

	out, err := e.store.RecordAnswer(ctx, storage.Response{
		ID:            uuid.NewString(),
		InterviewID:   iv.ID,
		QuestionIndex: index,
		QuestionText:  qs[index].Text,
		RawAnswer:     input,
	})
	switch {
	case errors.Is(err, storage.ErrOutOfOrder):
		e.metrics.Answer("resync")
		e.logger.Warn("answer ahead of progress, resyncing", "interview_id", interviewID, "question_index", index, "answered", out.Answered)
		return ok(twiml.Script{e.gather(interviewID, qs, out.Answered)})
	case errors.Is(err, storage.ErrInactive):
		return fail(errCancelled)
	case err != nil:
		return fail(interview.Translate(err))
	}

	if !out.Inserted {
		// A redelivery continues from the stored progress, not from its own
		// index. The delivery that stored the last answer owns synthesis.
		e.metrics.Answer("duplicate")
		e.logger.Debug("duplicate answer delivery", "interview_id", interviewID, "question_index", index, "answered", out.Answered)
		if out.Answered >= len(qs) {
			return ok(closingScript())
		}
		return ok(twiml.Script{e.gather(interviewID, qs, out.Answered)})
	}

	if input == "" {
		e.metrics.Answer("timeout")
	} else {
		e.metrics.Answer("answer")
	}

	next := index + 1
	if next < len(qs) {
		var script twiml.Script
		if input == "" {
			script = append(script, twiml.Say{Text: noResponse})
		}
		return ok(append(script, e.gather(interviewID, qs, next)))
	}
	return e.finish(ctx, interviewID)
}

// finish synthesizes the report and closes the call. A concurrent completion
// is treated as success.
func (e *Engine) finish(ctx context.Context, interviewID string) Result {
	if _, err := e.synth.Synthesize(ctx, interviewID); err != nil && !errors.Is(err, interview.ErrAlreadyComplete) {
		e.logger.Error("report synthesis failed", "interview_id", interviewID, "error", err)
		return fail(err)
	}
	return ok(closingScript())
}

// load reads the interview and its question sequence and rejects interviews
// that can no longer take answers.
func (e *Engine) load(ctx context.Context, interviewID string) (storage.Interview, []storage.Question, error) {
	iv, err := e.store.GetInterview(ctx, interviewID)
	if err != nil {
		return storage.Interview{}, nil, interview.Translate(err)
	}
	switch iv.Status {
	case storage.StatusCompleted:
		return iv, nil, interview.ErrAlreadyComplete
	case storage.StatusCancelled:
		return iv, nil, errCancelled
	}

	qs, err := e.questions.Questions(ctx, iv)
	if err != nil {
		return iv, nil, err
	}
	if len(qs) == 0 {
		return iv, nil, fmt.Errorf("%w: no questions available", interview.ErrUpstream)
	}
	return iv, qs, nil
}

func (e *Engine) gather(interviewID string, qs []storage.Question, index int) twiml.Gather {
	return twiml.Gather{
		Input:          []twiml.InputMode{twiml.Speech, twiml.DTMF},
		TimeoutSeconds: e.cfg.GatherTimeout,
		NumDigits:      1,
		Action:         e.AnswerURL(interviewID, index),
		Prompt:         twiml.Say{Text: fmt.Sprintf(promptFormat, index+1, qs[index].Text)},
		PostOnEmpty:    true,
	}
}
