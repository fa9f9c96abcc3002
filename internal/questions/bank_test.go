package questions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recruitx/recruitx/internal/llm"
	"github.com/recruitx/recruitx/internal/storage"
)

type mockProvider struct {
	calls atomic.Int32
	delay time.Duration
	qs    []storage.Question
	err   error
}

func (m *mockProvider) Generate(ctx context.Context, jd string, n int) ([]storage.Question, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.qs, m.err
}

func openStoreWithInterview(t *testing.T) (*storage.Store, storage.Interview) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.CreateCandidate(ctx, storage.Candidate{ID: "c1", Name: "Ada", Email: "ada@example.com", Phone: "+1"}); err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	iv := storage.Interview{ID: "iv1", CandidateID: "c1", JobDescription: "Go developer", ScheduledAt: time.Now()}
	if err := s.CreateInterview(ctx, iv); err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	return s, iv
}

func TestBank_GeneratesOnceAndPersists(t *testing.T) {
	s, iv := openStoreWithInterview(t)
	p := &mockProvider{qs: []storage.Question{{Text: "Q1"}, {Text: "Q2"}}}
	b := NewBank(s, p, 2, nil)
	ctx := context.Background()

	first, err := b.Questions(ctx, iv)
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("len = %d, want 2", len(first))
	}

	// A different provider output must not change the stored sequence.
	p.qs = []storage.Question{{Text: "other"}}
	second, err := b.Questions(ctx, iv)
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(second) != 2 || second[0].Text != "Q1" {
		t.Errorf("second call = %+v, want stored sequence", second)
	}
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

func TestBank_ConcurrentFirstUseGeneratesOnce(t *testing.T) {
	s, iv := openStoreWithInterview(t)
	p := &mockProvider{delay: 20 * time.Millisecond, qs: []storage.Question{{Text: "Q1"}}}
	b := NewBank(s, p, 1, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qs, err := b.Questions(context.Background(), iv)
			if err != nil || len(qs) != 1 || qs[0].Text != "Q1" {
				t.Errorf("Questions = %+v, %v", qs, err)
			}
		}()
	}
	wg.Wait()

	stored, _ := s.ListQuestions(context.Background(), iv.ID)
	if len(stored) != 1 {
		t.Errorf("stored = %d questions, want 1", len(stored))
	}
}

func TestBank_GenerationFailureYieldsEmpty(t *testing.T) {
	s, iv := openStoreWithInterview(t)
	p := &mockProvider{err: errors.New("upstream down")}
	b := NewBank(s, p, 5, nil)

	qs, err := b.Questions(context.Background(), iv)
	if err != nil {
		t.Fatalf("Questions err = %v, want nil", err)
	}
	if len(qs) != 0 {
		t.Errorf("len = %d, want 0", len(qs))
	}

	// Nothing was persisted, so a recovered provider is used next time.
	p.err = nil
	p.qs = []storage.Question{{Text: "Q1"}}
	qs, _ = b.Questions(context.Background(), iv)
	if len(qs) != 1 {
		t.Errorf("after recovery len = %d, want 1", len(qs))
	}
}

type fakeGenerator struct {
	qs  []llm.Question
	err error
}

func (f fakeGenerator) GenerateQuestions(ctx context.Context, jd string, n int) ([]llm.Question, error) {
	return f.qs, f.err
}

func TestLLMProvider_MapsQuestions(t *testing.T) {
	p := NewLLMProvider(fakeGenerator{qs: []llm.Question{
		{Text: "A", Skill: "go", Difficulty: "2"},
		{Text: "B", Criteria: "c"},
	}})
	qs, err := p.Generate(context.Background(), "jd", 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs) != 2 || qs[1].Index != 1 || qs[0].Skill != "go" || qs[1].Criteria != "c" {
		t.Errorf("Generate = %+v", qs)
	}
}

const testBank = `
questions:
  - text: Tell me about a project you are proud of.
    skill: communication
  - text: How do goroutines communicate?
    skill: go
    difficulty: "2"
    keywords: [golang, " Go "]
  - text: How do you size a Kubernetes deployment?
    keywords: [kubernetes]
`

func TestStaticProvider_PrefersKeywordMatches(t *testing.T) {
	p, err := ParseStaticProvider([]byte(testBank))
	if err != nil {
		t.Fatalf("ParseStaticProvider: %v", err)
	}

	qs, err := p.Generate(context.Background(), "Senior Kubernetes operator", 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("len = %d, want 2", len(qs))
	}
	if qs[0].Text != "How do you size a Kubernetes deployment?" {
		t.Errorf("qs[0] = %q, want the kubernetes question first", qs[0].Text)
	}
	if qs[1].Index != 1 || qs[1].Text != "Tell me about a project you are proud of." {
		t.Errorf("qs[1] = %+v", qs[1])
	}

	all, _ := p.Generate(context.Background(), "anything", 10)
	if len(all) != 3 {
		t.Errorf("len = %d, want all 3 entries", len(all))
	}
}

func TestParseStaticProvider_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "questions: []"},
		{"blank text", "questions:\n  - text: \"  \""},
		{"bad yaml", "questions: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStaticProvider([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadStaticProvider_SampleBank(t *testing.T) {
	p, err := LoadStaticProvider("../../configs/questions.yaml")
	if err != nil {
		t.Fatalf("LoadStaticProvider: %v", err)
	}
	qs, err := p.Generate(context.Background(), "Senior backend engineer, Postgres and REST APIs", 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs) != 5 {
		t.Fatalf("len = %d, want 5", len(qs))
	}
	if qs[0].Skill != "api design" || qs[1].Skill != "databases" {
		t.Errorf("backend questions not first: %q, %q", qs[0].Skill, qs[1].Skill)
	}
}
