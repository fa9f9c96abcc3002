package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/recruitx/recruitx/internal/llm"
	"github.com/recruitx/recruitx/internal/storage"
)

type staticQuestions struct {
	qs  []storage.Question
	err error
}

func (q staticQuestions) Questions(ctx context.Context, iv storage.Interview) ([]storage.Question, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.qs, nil
}

type mockDialer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *mockDialer) PlaceCall(ctx context.Context, to, interviewID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, to)
	if d.err != nil {
		return "", d.err
	}
	return "CA-" + interviewID, nil
}

type mockWriter struct {
	mu      sync.Mutex
	calls   int
	answers []llm.Answer
	ev      llm.Evaluation
	err     error
	// during runs inside GenerateReport, before the evaluation is returned.
	during func()
}

func (w *mockWriter) GenerateReport(ctx context.Context, jd string, answers []llm.Answer) (llm.Evaluation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.answers = answers
	if w.during != nil {
		w.during()
	}
	return w.ev, w.err
}

type recordingNotifier struct {
	notices []Notice
}

func (n *recordingNotifier) ReportReady(ctx context.Context, notice Notice) {
	n.notices = append(n.notices, notice)
}

type testEnv struct {
	store  *storage.Store
	svc    *Service
	dialer *mockDialer
	writer *mockWriter
}

func newTestEnv(t *testing.T, qs QuestionSource) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	writer := &mockWriter{ev: llm.Evaluation{OverallScore: 70, Strengths: []string{"clarity"}}}
	dialer := &mockDialer{}
	synth := NewSynthesizer(store, writer, nil)
	return &testEnv{
		store:  store,
		svc:    NewService(store, qs, dialer, synth, nil, nil),
		dialer: dialer,
		writer: writer,
	}
}

func (e *testEnv) candidate(t *testing.T) storage.Candidate {
	t.Helper()
	c, err := e.svc.CreateCandidate(context.Background(), CandidateInput{Name: "Ada Lovelace", Email: "Ada@Example.com", Phone: "+15550001111"})
	if err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	return c
}

func twoQuestions() []storage.Question {
	return []storage.Question{{Index: 0, Text: "Q1", Criteria: "c1"}, {Index: 1, Text: "Q2"}}
}

// persistingQuestions stores the sequence like the real bank does.
type persistingQuestions struct {
	store *storage.Store
	qs    []storage.Question
}

func (p persistingQuestions) Questions(ctx context.Context, iv storage.Interview) ([]storage.Question, error) {
	return p.store.SaveQuestions(ctx, iv.ID, p.qs)
}

func TestSchedule(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.questions = persistingQuestions{store: env.store, qs: twoQuestions()}
	c := env.candidate(t)

	got, err := env.svc.Schedule(context.Background(), ScheduleInput{
		CandidateID:    c.ID,
		JobDescription: "  Site reliability engineer  ",
		ScheduledAt:    time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got.InterviewID == "" || len(got.Questions) != 2 {
		t.Errorf("Schedule = %+v", got)
	}

	iv, err := env.store.GetInterview(context.Background(), got.InterviewID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if iv.Status != storage.StatusScheduled || iv.JobDescription != "Site reliability engineer" {
		t.Errorf("stored interview = %+v", iv)
	}
}

func TestSchedule_Validation(t *testing.T) {
	env := newTestEnv(t, staticQuestions{})
	c := env.candidate(t)
	now := time.Now()

	tests := []struct {
		name string
		in   ScheduleInput
		want error
	}{
		{"missing candidate id", ScheduleInput{JobDescription: "jd", ScheduledAt: now}, ErrValidation},
		{"blank job description", ScheduleInput{CandidateID: c.ID, JobDescription: "   ", ScheduledAt: now}, ErrValidation},
		{"zero time", ScheduleInput{CandidateID: c.ID, JobDescription: "jd"}, ErrValidation},
		{"unknown candidate", ScheduleInput{CandidateID: "nope", JobDescription: "jd", ScheduledAt: now}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.Schedule(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestSchedule_GenerationFailureTolerated verifies scheduling succeeds with
// an empty question list when questions cannot be produced.
func TestSchedule_GenerationFailureTolerated(t *testing.T) {
	env := newTestEnv(t, staticQuestions{})
	c := env.candidate(t)

	got, err := env.svc.Schedule(context.Background(), ScheduleInput{CandidateID: c.ID, JobDescription: "jd", ScheduledAt: time.Now()})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if got.Questions == nil || len(got.Questions) != 0 {
		t.Errorf("Questions = %#v, want empty list", got.Questions)
	}
}

func scheduleOne(t *testing.T, env *testEnv) string {
	t.Helper()
	c := env.candidate(t)
	got, err := env.svc.Schedule(context.Background(), ScheduleInput{CandidateID: c.ID, JobDescription: "jd", ScheduledAt: time.Now()})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	return got.InterviewID
}

func TestStart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.questions = persistingQuestions{store: env.store, qs: twoQuestions()}
	id := scheduleOne(t, env)

	got, err := env.svc.Start(context.Background(), id)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got.CallSID != "CA-"+id || len(got.Questions) != 2 {
		t.Errorf("Start = %+v", got)
	}
	if len(env.dialer.calls) != 1 || env.dialer.calls[0] != "+15550001111" {
		t.Errorf("dialed %v", env.dialer.calls)
	}

	st, err := env.svc.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != storage.StatusInProgress || st.StartedAt == nil || st.TotalQuestions != 2 {
		t.Errorf("Status = %+v", st)
	}

	if _, err := env.svc.Start(context.Background(), id); !errors.Is(err, ErrValidation) {
		t.Errorf("second Start err = %v, want ErrValidation", err)
	}
}

func TestStart_NoQuestions(t *testing.T) {
	env := newTestEnv(t, staticQuestions{})
	id := scheduleOne(t, env)

	if _, err := env.svc.Start(context.Background(), id); !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
	if len(env.dialer.calls) != 0 {
		t.Error("no call should be placed without questions")
	}
	iv, _ := env.store.GetInterview(context.Background(), id)
	if iv.Status != storage.StatusScheduled {
		t.Errorf("status = %q, want scheduled", iv.Status)
	}
}

func TestStart_DialFailure(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	env.dialer.err = errors.New("twilio down")
	id := scheduleOne(t, env)

	if _, err := env.svc.Start(context.Background(), id); !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
	iv, _ := env.store.GetInterview(context.Background(), id)
	if iv.Status != storage.StatusScheduled {
		t.Errorf("status = %q, want scheduled", iv.Status)
	}
}

func TestStart_RejectedDialCanRetry(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	env.dialer.err = errors.New("twilio error 21211: invalid number")
	id := scheduleOne(t, env)
	ctx := context.Background()

	env.svc.Start(ctx, id)
	env.dialer.err = nil
	if _, err := env.svc.Start(ctx, id); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if len(env.dialer.calls) != 2 {
		t.Errorf("dial attempts = %d, want 2", len(env.dialer.calls))
	}
}

func TestStart_UnconfirmedDialHoldsRetry(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	env.dialer.err = fmt.Errorf("creating call: %w: timeout", ErrCallUnconfirmed)
	id := scheduleOne(t, env)
	ctx := context.Background()

	if _, err := env.svc.Start(ctx, id); !errors.Is(err, ErrUpstream) {
		t.Errorf("first Start err = %v, want ErrUpstream", err)
	}
	env.dialer.err = nil
	if _, err := env.svc.Start(ctx, id); !errors.Is(err, ErrValidation) {
		t.Errorf("second Start err = %v, want ErrValidation while the first call may ring", err)
	}
	if len(env.dialer.calls) != 1 {
		t.Errorf("dial attempts = %d, want 1", len(env.dialer.calls))
	}

	env.svc.now = func() time.Time { return time.Now().Add(storage.DialRetryAfter + time.Minute) }
	if _, err := env.svc.Start(ctx, id); err != nil {
		t.Fatalf("Start after hold: %v", err)
	}
	if len(env.dialer.calls) != 2 {
		t.Errorf("dial attempts = %d, want 2 after the hold", len(env.dialer.calls))
	}
}

func TestStart_Missing(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	if _, err := env.svc.Start(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestComplete(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.questions = persistingQuestions{store: env.store, qs: twoQuestions()}
	notifier := &recordingNotifier{}
	env.svc.synth.notifier = notifier
	id := scheduleOne(t, env)
	ctx := context.Background()

	for i, a := range []string{"first answer", ""} {
		if _, err := env.store.RecordAnswer(ctx, storage.Response{ID: id + string(rune('a'+i)), InterviewID: id, QuestionIndex: i, QuestionText: twoQuestions()[i].Text, RawAnswer: a}); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	rep, err := env.svc.Complete(ctx, id)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rep.OverallScore != 70 || rep.Weaknesses == nil {
		t.Errorf("report = %+v", rep)
	}
	if len(env.writer.answers) != 2 || env.writer.answers[0].Criteria != "c1" || env.writer.answers[1].Response != "" {
		t.Errorf("answers sent to writer = %+v", env.writer.answers)
	}
	if len(notifier.notices) != 1 || notifier.notices[0].CandidateName != "Ada Lovelace" {
		t.Errorf("notices = %+v", notifier.notices)
	}

	if _, err := env.svc.Complete(ctx, id); !errors.Is(err, ErrAlreadyComplete) {
		t.Errorf("second Complete err = %v, want ErrAlreadyComplete", err)
	}
	if env.writer.calls != 1 {
		t.Errorf("writer calls = %d, want 1", env.writer.calls)
	}

	if _, err := env.svc.Start(ctx, id); !errors.Is(err, ErrAlreadyComplete) {
		t.Errorf("Start after completion err = %v, want ErrAlreadyComplete", err)
	}
}

func TestComplete_WriterFailureLeavesInterviewOpen(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	env.writer.err = errors.New("model unavailable")
	id := scheduleOne(t, env)

	if _, err := env.svc.Complete(context.Background(), id); !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
	iv, _ := env.store.GetInterview(context.Background(), id)
	if iv.Status == storage.StatusCompleted {
		t.Error("interview must not be completed without a report")
	}
}

// TestComplete_ConcurrentSingleReport runs synthesis concurrently and checks
// only one report is stored.
func TestComplete_ConcurrentSingleReport(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	id := scheduleOne(t, env)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Complete(context.Background(), id)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrAlreadyComplete) {
				t.Errorf("Complete: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	reps, _ := env.store.ListReports(context.Background(), 0, 0)
	if len(reps) != 1 {
		t.Errorf("reports = %d, want 1", len(reps))
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	id := scheduleOne(t, env)

	if err := env.svc.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := env.svc.Start(context.Background(), id); !errors.Is(err, ErrValidation) {
		t.Errorf("Start after cancel err = %v, want ErrValidation", err)
	}
	if err := env.svc.Cancel(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel(missing) err = %v, want ErrNotFound", err)
	}
}

func TestComplete_CancelledInterview(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	id := scheduleOne(t, env)
	ctx := context.Background()
	if _, err := env.store.RecordAnswer(ctx, storage.Response{ID: "r0", InterviewID: id, QuestionIndex: 0, RawAnswer: "a"}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if err := env.svc.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_, err := env.svc.Complete(ctx, id)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
	if env.writer.calls != 0 {
		t.Errorf("writer calls = %d, want 0 for a cancelled interview", env.writer.calls)
	}
	iv, _ := env.store.GetInterview(ctx, id)
	if iv.Status != storage.StatusCancelled {
		t.Errorf("status = %q, want cancelled", iv.Status)
	}
}

// TestComplete_CancelledDuringSynthesis cancels the interview while the report
// is being generated and checks the report is discarded.
func TestComplete_CancelledDuringSynthesis(t *testing.T) {
	env := newTestEnv(t, staticQuestions{qs: twoQuestions()})
	id := scheduleOne(t, env)
	ctx := context.Background()
	env.writer.during = func() {
		if err := env.store.CancelInterview(ctx, id); err != nil {
			t.Errorf("CancelInterview: %v", err)
		}
	}

	if _, err := env.svc.Complete(ctx, id); !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
	iv, _ := env.store.GetInterview(ctx, id)
	if iv.Status != storage.StatusCancelled || iv.CompletedAt != nil {
		t.Errorf("interview = %+v, want still cancelled", iv)
	}
	reps, _ := env.store.ListReports(ctx, 0, 0)
	if len(reps) != 0 {
		t.Errorf("reports = %d, want 0", len(reps))
	}
}

func TestCandidateValidation(t *testing.T) {
	env := newTestEnv(t, staticQuestions{})
	tests := []struct {
		name string
		in   CandidateInput
	}{
		{"no name", CandidateInput{Email: "a@b.co", Phone: "+15550001111"}},
		{"bad email", CandidateInput{Name: "A", Email: "nope", Phone: "+15550001111"}},
		{"local phone", CandidateInput{Name: "A", Email: "a@b.co", Phone: "5550001111"}},
		{"letters in phone", CandidateInput{Name: "A", Email: "a@b.co", Phone: "+1555CALLME"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.CreateCandidate(context.Background(), tt.in); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCandidateDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, staticQuestions{})
	c := env.candidate(t)
	if c.Email != "ada@example.com" {
		t.Errorf("Email = %q, want lower-cased", c.Email)
	}
	_, err := env.svc.CreateCandidate(context.Background(), CandidateInput{Name: "B", Email: "ada@example.com", Phone: "+15550002222"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestSummarize(t *testing.T) {
	reps := []storage.Report{
		{OverallScore: 80, Strengths: []string{"Communication", "focus"}, Weaknesses: []string{"depth"}},
		{OverallScore: 60, Strengths: []string{"communication "}, Weaknesses: []string{"depth", "pace"}},
	}
	got := summarize(reps)
	if got.TotalReports != 2 || got.AverageScore != 70 {
		t.Errorf("summary = %+v", got)
	}
	if len(got.TopStrengths) != 2 || got.TopStrengths[0] != (TermCount{Term: "communication", Count: 2}) {
		t.Errorf("TopStrengths = %+v", got.TopStrengths)
	}
	if got.TopWeaknesses[0] != (TermCount{Term: "depth", Count: 2}) {
		t.Errorf("TopWeaknesses = %+v", got.TopWeaknesses)
	}

	empty := summarize(nil)
	if empty.TotalReports != 0 || empty.TopStrengths == nil {
		t.Errorf("empty summary = %+v", empty)
	}
}
