package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/recruitx/recruitx/internal/dialogue"
	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/llm"
	"github.com/recruitx/recruitx/internal/questions"
	"github.com/recruitx/recruitx/internal/storage"
	"github.com/recruitx/recruitx/internal/twiml"
)

const testToken = "test-token"

type fakeProvider struct {
	texts []string
	err   error
}

func (p fakeProvider) Generate(ctx context.Context, jd string, n int) ([]storage.Question, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]storage.Question, 0, len(p.texts))
	for i, t := range p.texts {
		out = append(out, storage.Question{Index: i, Text: t, Skill: "general"})
	}
	return out, nil
}

type fakeDialer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDialer) PlaceCall(ctx context.Context, to, interviewID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, to)
	if d.err != nil {
		return "", d.err
	}
	return "CA-" + interviewID, nil
}

type fakeWriter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (w *fakeWriter) GenerateReport(ctx context.Context, jd string, answers []llm.Answer) (llm.Evaluation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return llm.Evaluation{}, w.err
	}
	return llm.Evaluation{
		OverallScore:     72,
		Strengths:        []string{"communication"},
		Weaknesses:       []string{"testing"},
		DetailedAnalysis: "Solid answers.",
		Recommendations:  "Proceed to a technical round.",
		HiringDecision:   "hire",
	}, nil
}

type testEnv struct {
	store   *storage.Store
	svc     *interview.Service
	engine  *dialogue.Engine
	dialer  *fakeDialer
	writer  *fakeWriter
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	provider := fakeProvider{texts: []string{"Tell me about yourself.", "Describe a hard bug.", "Why this team?"}}
	bank := questions.NewBank(store, provider, 3, nil)
	dialer := &fakeDialer{}
	writer := &fakeWriter{}
	synth := interview.NewSynthesizer(store, writer, nil)
	svc := interview.NewService(store, bank, dialer, synth, nil, nil)
	engine := dialogue.NewEngine(store, bank, synth, dialogue.Config{PublicBaseURL: "https://rx.example.com", GatherTimeout: 8}, nil, nil)

	h := NewRouter(RouterDeps{
		Webhooks:   WebhookDeps{Engine: engine, Voice: twiml.Voice{Name: "alice", Language: "en-IN"}},
		Management: ManagementDeps{Service: svc, Token: testToken},
	})
	return &testEnv{store: store, svc: svc, engine: engine, dialer: dialer, writer: writer, handler: h}
}

// seed creates a candidate and an interview scheduled an hour ago.
func (e *testEnv) seed(t *testing.T) (candidateID, interviewID string) {
	t.Helper()
	ctx := context.Background()
	c, err := e.svc.CreateCandidate(ctx, interview.CandidateInput{Name: "Ada", Email: "ada@example.com", Phone: "+15550001111"})
	if err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	res, err := e.svc.Schedule(ctx, interview.ScheduleInput{
		CandidateID:    c.ID,
		JobDescription: "Backend engineer",
		ScheduledAt:    time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	return c.ID, res.InterviewID
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response: %v\n%s", err, rec.Body.String())
	}
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error.Type
}
