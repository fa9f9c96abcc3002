package api

import (
	"bytes"
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/recruitx/recruitx/internal/storage"
)

type twimlDoc struct {
	XMLName xml.Name `xml:"Response"`
	Says    []string `xml:"Say"`
	Gathers []struct {
		Action string `xml:"action,attr"`
		Input  string `xml:"input,attr"`
		Say    string `xml:"Say"`
	} `xml:"Gather"`
	Redirects []string  `xml:"Redirect"`
	Hangup    *struct{} `xml:"Hangup"`
}

func parseTwiML(t *testing.T, rec *httptest.ResponseRecorder) twimlDoc {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
	var doc twimlDoc
	if err := xml.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid twiml: %v\n%s", err, rec.Body.String())
	}
	return doc
}

func startedInterview(t *testing.T, env *testEnv) string {
	t.Helper()
	_, id := env.seed(t)
	if _, err := env.svc.Start(context.Background(), id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return id
}

func answer(t *testing.T, env *testEnv, id, index string, form url.Values) twimlDoc {
	t.Helper()
	return parseTwiML(t, env.postForm(t, "/api/v1/interviews/"+id+"/response/"+index, form))
}

func TestWebhook_EntryGreetsAndAsksFirstQuestion(t *testing.T) {
	env := newTestEnv(t)
	id := startedInterview(t, env)

	doc := parseTwiML(t, env.postForm(t, "/api/v1/interviews/"+id+"/twiml", url.Values{"CallSid": {"CA1"}}))

	if len(doc.Says) != 1 || !strings.Contains(doc.Says[0], "Hello Ada") {
		t.Errorf("greeting = %q", doc.Says)
	}
	if len(doc.Gathers) != 1 {
		t.Fatalf("gathers = %d, want 1", len(doc.Gathers))
	}
	g := doc.Gathers[0]
	if want := "https://rx.example.com/api/v1/interviews/" + id + "/response/0"; g.Action != want {
		t.Errorf("action = %q, want %q", g.Action, want)
	}
	if g.Input != "speech dtmf" {
		t.Errorf("input = %q", g.Input)
	}
	if g.Say != "Question 1: Tell me about yourself." {
		t.Errorf("prompt = %q", g.Say)
	}
	if len(doc.Redirects) != 1 || doc.Redirects[0] != g.Action {
		t.Errorf("redirects = %q, want the gather action", doc.Redirects)
	}
}

func TestWebhook_FullCall(t *testing.T) {
	env := newTestEnv(t)
	id := startedInterview(t, env)

	doc := answer(t, env, id, "0", url.Values{"SpeechResult": {"I build payment systems."}})
	if len(doc.Gathers) != 1 || !strings.HasSuffix(doc.Gathers[0].Action, "/response/1") {
		t.Fatalf("after answer 0: %+v", doc)
	}

	// Silence: the apology precedes the next question.
	doc = answer(t, env, id, "1", url.Values{})
	if len(doc.Says) != 1 || !strings.Contains(doc.Says[0], "did not receive") {
		t.Errorf("timeout says = %q", doc.Says)
	}

	doc = answer(t, env, id, "2", url.Values{"Digits": {"5"}})
	if doc.Hangup == nil {
		t.Fatalf("final answer did not hang up: %+v", doc)
	}

	rs, err := env.store.ListResponses(context.Background(), id)
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(rs) != 3 || rs[1].RawAnswer != "" || rs[2].RawAnswer != "5" {
		t.Errorf("responses = %+v", rs)
	}
	iv, err := env.store.GetInterview(context.Background(), id)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if iv.Status != storage.StatusCompleted {
		t.Errorf("status = %q, want completed", iv.Status)
	}
	if env.writer.calls != 1 {
		t.Errorf("report generated %d times, want 1", env.writer.calls)
	}
}

func TestWebhook_SpeechPreferredOverDigits(t *testing.T) {
	env := newTestEnv(t)
	id := startedInterview(t, env)

	answer(t, env, id, "0", url.Values{"SpeechResult": {"spoken"}, "Digits": {"1"}})

	rs, _ := env.store.ListResponses(context.Background(), id)
	if len(rs) != 1 || rs[0].RawAnswer != "spoken" {
		t.Errorf("responses = %+v", rs)
	}
}

func TestWebhook_FallbacksAlwaysReturnTwiML(t *testing.T) {
	env := newTestEnv(t)
	id := startedInterview(t, env)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"unknown interview entry", "/api/v1/interviews/missing/twiml", "does not exist"},
		{"unknown interview answer", "/api/v1/interviews/missing/response/0", "does not exist"},
		{"index past the end", "/api/v1/interviews/" + id + "/response/9", "already complete"},
		{"non numeric index", "/api/v1/interviews/" + id + "/response/abc", "already complete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseTwiML(t, env.postForm(t, tt.path, url.Values{}))
			if doc.Hangup == nil {
				t.Errorf("fallback does not hang up: %+v", doc)
			}
			if len(doc.Says) == 0 || !strings.Contains(doc.Says[len(doc.Says)-1], tt.want) {
				t.Errorf("says = %q, want %q", doc.Says, tt.want)
			}
		})
	}
}

func TestWebhook_CancelledInterview(t *testing.T) {
	env := newTestEnv(t)
	id := startedInterview(t, env)
	if err := env.svc.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	doc := parseTwiML(t, env.postForm(t, "/api/v1/interviews/"+id+"/twiml", url.Values{}))
	if doc.Hangup == nil || !strings.Contains(strings.Join(doc.Says, " "), "no longer active") {
		t.Errorf("cancelled entry = %+v", doc)
	}
}

func TestWebhook_CallStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.postForm(t, "/api/v1/interviews/any/status", url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "Status received" {
		t.Errorf("body = %v", body)
	}
}

func TestWebhook_NoBearerTokenRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.postForm(t, "/api/v1/interviews/missing/twiml", url.Values{})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestWebhook_VerifyMiddleware(t *testing.T) {
	env := newTestEnv(t)
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Twilio-Signature") != "ok" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	h := NewWebhookHandler(WebhookDeps{Engine: env.engine, Verify: deny})

	req := httptest.NewRequest(http.MethodPost, "/interviews/missing/twiml", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unsigned status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/interviews/missing/twiml", nil)
	req.Header.Set("X-Twilio-Signature", "ok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed status = %d, want 200", rec.Code)
	}
}

func TestWebhook_EntryNoInputApologizesAndContinues(t *testing.T) {
	env := newTestEnv(t)
	id := startedInterview(t, env)

	entry := parseTwiML(t, env.postForm(t, "/api/v1/interviews/"+id+"/twiml", url.Values{}))
	if len(entry.Gathers) != 1 || len(entry.Redirects) != 1 {
		t.Fatalf("entry = %+v, want one gather followed by a redirect", entry)
	}
	if entry.Redirects[0] != entry.Gathers[0].Action {
		t.Errorf("redirect = %q, want the gather action %q", entry.Redirects[0], entry.Gathers[0].Action)
	}

	// Silence: Twilio follows the redirect with no SpeechResult or Digits.
	path := strings.TrimPrefix(entry.Redirects[0], "https://rx.example.com")
	next := parseTwiML(t, env.postForm(t, path, url.Values{}))
	if len(next.Says) == 0 || next.Says[0] != "We did not receive your response. Let's move to the next question." {
		t.Errorf("says = %q, want the no-response apology first", next.Says)
	}
	if len(next.Gathers) != 1 || !strings.HasSuffix(next.Gathers[0].Action, "/response/1") {
		t.Errorf("next = %+v, want question 2", next)
	}

	rs, _ := env.store.ListResponses(context.Background(), id)
	if len(rs) != 1 || rs[0].RawAnswer != "" {
		t.Errorf("responses = %+v, want one empty answer", rs)
	}
}

func TestWebhook_EntryStartsScheduledInterview(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.seed(t)

	doc := parseTwiML(t, env.postForm(t, "/api/v1/interviews/"+id+"/twiml", url.Values{"CallSid": {"CA-late"}}))
	if len(doc.Gathers) != 1 {
		t.Fatalf("entry = %+v, want a gather", doc)
	}
	iv, err := env.store.GetInterview(context.Background(), id)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if iv.Status != storage.StatusInProgress || iv.CallSID != "CA-late" || iv.StartedAt == nil {
		t.Errorf("interview = %+v, want in_progress with the webhook call sid", iv)
	}
}

func TestWebhook_CallStatusLogsUnreadableForm(t *testing.T) {
	env := newTestEnv(t)
	var logs bytes.Buffer
	h := NewWebhookHandler(WebhookDeps{Engine: env.engine, Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	req := httptest.NewRequest(http.MethodPost, "/interviews/iv1/status", strings.NewReader("CallSid=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(logs.String(), "unreadable webhook form") || !strings.Contains(logs.String(), "interview_id=iv1") {
		t.Errorf("logs = %q, want the form error with the interview id", logs.String())
	}
}
