package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/storage"
)

func TestSlack_ReportReady(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding webhook body: %v", err)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, nil)
	s.ReportReady(context.Background(), interview.Notice{
		InterviewID:   "iv1",
		CandidateName: "Ada",
		Report: storage.Report{
			OverallScore:   82,
			Strengths:      []string{"communication", "go"},
			HiringDecision: "hire",
		},
	})

	text, _ := got["text"].(string)
	if !strings.Contains(text, "Ada") || !strings.Contains(text, "82/100") || !strings.Contains(text, "hire") {
		t.Errorf("text = %q", text)
	}
	blocks, _ := got["blocks"].([]any)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %v, want one section", got["blocks"])
	}
	body, _ := json.Marshal(blocks[0])
	for _, want := range []string{"communication, go", "Weaknesses", "iv1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("section missing %q: %s", want, body)
		}
	}
}

func TestSlack_FailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	// Must return without panicking.
	NewSlack(srv.URL, nil).ReportReady(context.Background(), interview.Notice{InterviewID: "iv1"})
}

func TestOrDash(t *testing.T) {
	if orDash("  ") != "-" || orDash("x") != "x" {
		t.Error("orDash mismatch")
	}
}
