package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Question is one generated interview question.
type Question struct {
	Text       string
	Criteria   string
	Skill      string
	Difficulty string
}

type rawQuestion struct {
	Question   string          `json:"question"`
	Criteria   string          `json:"criteria"`
	Skill      string          `json:"skill"`
	Difficulty json.RawMessage `json:"difficulty"`
}

const questionsPrompt = `Based on the following job description, generate %d relevant interview questions
that can be asked and answered over a phone call.
For each question, provide:
1. The question text
2. The expected answer criteria
3. The skill or competency being assessed
4. The difficulty level (1-5)

Job Description:
%s

Respond with a JSON object of the following structure and nothing else:
{
  "questions": [
    {"question": "question text", "criteria": "expected answer criteria", "skill": "skill being assessed", "difficulty": 3}
  ]
}`

// GenerateQuestions asks the model for n questions about jobDescription.
// Replies that do not match the expected structure are an error; callers
// decide how to degrade.
func (c *Client) GenerateQuestions(ctx context.Context, jobDescription string, n int) ([]Question, error) {
	if n <= 0 {
		return nil, fmt.Errorf("question count must be positive, got %d", n)
	}
	raw, err := c.completeJSON(ctx, fmt.Sprintf(questionsPrompt, n, jobDescription), 0.7, 1000)
	if err != nil {
		return nil, fmt.Errorf("generating questions: %w", err)
	}
	return parseQuestions(raw, n)
}

func parseQuestions(raw string, n int) ([]Question, error) {
	payload := []byte(extractJSON(raw))
	// Some models answer with the bare array.
	if bytes.HasPrefix(payload, []byte("[")) {
		payload = append(append([]byte(`{"questions":`), payload...), '}')
	}
	if _, err := validate("questions.schema.json", payload); err != nil {
		return nil, err
	}

	var doc struct {
		Questions []rawQuestion `json:"questions"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	out := make([]Question, 0, len(doc.Questions))
	for _, q := range doc.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		out = append(out, Question{
			Text:       text,
			Criteria:   strings.TrimSpace(q.Criteria),
			Skill:      strings.TrimSpace(q.Skill),
			Difficulty: difficultyString(q.Difficulty),
		})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func difficultyString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
