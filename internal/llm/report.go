package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Answer pairs a question with the candidate's transcribed reply.
type Answer struct {
	Question string `json:"question"`
	Criteria string `json:"criteria,omitempty"`
	Response string `json:"response"`
}

// Evaluation is the model's assessment of a whole interview. Missing fields
// are zero values: empty strings, empty lists and a score of 0.
type Evaluation struct {
	OverallScore     float64
	Strengths        []string
	Weaknesses       []string
	DetailedAnalysis string
	Recommendations  string
	HiringDecision   string
}

const reportPrompt = `Generate a comprehensive interview report based on the following interview data.
Answers that are empty mean the candidate did not respond to that question.

%s

Respond with a JSON object of the following structure and nothing else:
{
  "overall_score": score_out_of_100,
  "strengths": ["list", "of", "key", "strengths"],
  "weaknesses": ["list", "of", "areas", "for", "improvement"],
  "detailed_analysis": "comprehensive analysis of the interview",
  "recommendations": "specific recommendations for the candidate",
  "hiring_decision": "recommended hiring decision with justification"
}`

// GenerateReport asks the model to evaluate the answered interview.
func (c *Client) GenerateReport(ctx context.Context, jobDescription string, answers []Answer) (Evaluation, error) {
	data, err := json.MarshalIndent(map[string]any{
		"job_description": jobDescription,
		"responses":       answers,
	}, "", "  ")
	if err != nil {
		return Evaluation{}, fmt.Errorf("encoding interview data: %w", err)
	}

	raw, err := c.completeJSON(ctx, fmt.Sprintf(reportPrompt, data), 0.3, 2000)
	if err != nil {
		return Evaluation{}, fmt.Errorf("generating report: %w", err)
	}
	return parseEvaluation(raw)
}

// parseEvaluation maps the model reply onto an Evaluation. A reply that is
// valid JSON but deviates from the schema is mapped field by field with
// defaults; only undecodable output is an error.
func parseEvaluation(raw string) (Evaluation, error) {
	decoded, err := validate("report.schema.json", []byte(extractJSON(raw)))
	if decoded == nil {
		return Evaluation{}, err
	}
	if err != nil {
		slog.Warn("report output deviates from schema, applying defaults", "error", err)
	}

	doc, ok := decoded.(map[string]any)
	if !ok {
		return Evaluation{}, fmt.Errorf("report output is %T, want object", decoded)
	}
	return Evaluation{
		OverallScore:     number(doc["overall_score"]),
		Strengths:        stringList(doc["strengths"]),
		Weaknesses:       stringList(doc["weaknesses"]),
		DetailedAnalysis: text(doc["detailed_analysis"]),
		Recommendations:  text(doc["recommendations"]),
		HiringDecision:   text(doc["hiring_decision"]),
	}, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func text(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
