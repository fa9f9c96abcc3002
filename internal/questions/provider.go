// Package questions produces the question sequence of an interview and makes
// sure it is generated once and then read back from storage on every call.
package questions

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recruitx/recruitx/internal/llm"
	"github.com/recruitx/recruitx/internal/storage"
)

// Provider generates a fresh question sequence for a job description.
type Provider interface {
	Generate(ctx context.Context, jobDescription string, n int) ([]storage.Question, error)
}

// QuestionGenerator is the subset of llm.Client used by LLMProvider.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, jobDescription string, n int) ([]llm.Question, error)
}

// LLMProvider generates questions with a language model.
type LLMProvider struct {
	gen QuestionGenerator
}

func NewLLMProvider(gen QuestionGenerator) *LLMProvider {
	return &LLMProvider{gen: gen}
}

func (p *LLMProvider) Generate(ctx context.Context, jobDescription string, n int) ([]storage.Question, error) {
	generated, err := p.gen.GenerateQuestions(ctx, jobDescription, n)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Question, len(generated))
	for i, q := range generated {
		out[i] = storage.Question{
			Index:      i,
			Text:       q.Text,
			Criteria:   q.Criteria,
			Skill:      q.Skill,
			Difficulty: q.Difficulty,
		}
	}
	return out, nil
}

// BankEntry is one question of a static YAML question bank.
type BankEntry struct {
	Text       string   `yaml:"text"`
	Criteria   string   `yaml:"criteria"`
	Skill      string   `yaml:"skill"`
	Difficulty string   `yaml:"difficulty"`
	Keywords   []string `yaml:"keywords"`
}

type bankFile struct {
	Questions []BankEntry `yaml:"questions"`
}

// StaticProvider picks questions from a fixed bank. Entries whose keywords
// occur in the job description come first, then the remaining entries in
// file order.
type StaticProvider struct {
	entries []BankEntry
}

// LoadStaticProvider reads a YAML question bank from path.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question bank %s: %w", path, err)
	}
	return ParseStaticProvider(data)
}

// ParseStaticProvider parses a YAML question bank.
func ParseStaticProvider(data []byte) (*StaticProvider, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing question bank: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("question bank has no questions")
	}
	for i, q := range f.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("question bank entry %d has no text", i)
		}
	}
	return &StaticProvider{entries: f.Questions}, nil
}

func (p *StaticProvider) Generate(_ context.Context, jobDescription string, n int) ([]storage.Question, error) {
	jd := strings.ToLower(jobDescription)
	var matched, rest []BankEntry
	for _, e := range p.entries {
		if matchesAny(jd, e.Keywords) {
			matched = append(matched, e)
		} else {
			rest = append(rest, e)
		}
	}

	ordered := append(matched, rest...)
	if n > len(ordered) {
		n = len(ordered)
	}
	out := make([]storage.Question, n)
	for i := 0; i < n; i++ {
		e := ordered[i]
		out[i] = storage.Question{
			Index:      i,
			Text:       strings.TrimSpace(e.Text),
			Criteria:   e.Criteria,
			Skill:      e.Skill,
			Difficulty: e.Difficulty,
		}
	}
	return out, nil
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
