package interview

import (
	"context"
	"sort"
	"strings"

	"github.com/recruitx/recruitx/internal/storage"
)

const summaryTopN = 5

// TermCount is how often a strength or weakness appears across reports.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Summary aggregates every stored report.
type Summary struct {
	TotalReports  int         `json:"total_reports"`
	AverageScore  float64     `json:"average_score"`
	TopStrengths  []TermCount `json:"top_strengths"`
	TopWeaknesses []TermCount `json:"top_weaknesses"`
}

func (s *Service) Report(ctx context.Context, interviewID string) (storage.Report, error) {
	rep, err := s.store.GetReportByInterview(ctx, interviewID)
	return rep, Translate(err)
}

func (s *Service) Reports(ctx context.Context, offset, limit int) ([]storage.Report, error) {
	reps, err := s.store.ListReports(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	if reps == nil {
		reps = []storage.Report{}
	}
	return reps, nil
}

func (s *Service) CandidateReports(ctx context.Context, candidateID string) ([]storage.Report, error) {
	if _, err := s.store.GetCandidate(ctx, candidateID); err != nil {
		return nil, Translate(err)
	}
	reps, err := s.store.ListReportsByCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if reps == nil {
		reps = []storage.Report{}
	}
	return reps, nil
}

// Summary computes the average score and the most frequent strengths and
// weaknesses over all reports.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	reps, err := s.store.ListReports(ctx, 0, 0)
	if err != nil {
		return Summary{}, err
	}
	return summarize(reps), nil
}

func summarize(reps []storage.Report) Summary {
	sum := Summary{TotalReports: len(reps), TopStrengths: []TermCount{}, TopWeaknesses: []TermCount{}}
	if len(reps) == 0 {
		return sum
	}
	var total float64
	strengths := map[string]int{}
	weaknesses := map[string]int{}
	for _, r := range reps {
		total += r.OverallScore
		for _, t := range r.Strengths {
			strengths[normalizeTerm(t)]++
		}
		for _, t := range r.Weaknesses {
			weaknesses[normalizeTerm(t)]++
		}
	}
	sum.AverageScore = total / float64(len(reps))
	sum.TopStrengths = topTerms(strengths, summaryTopN)
	sum.TopWeaknesses = topTerms(weaknesses, summaryTopN)
	return sum
}

func normalizeTerm(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func topTerms(counts map[string]int, n int) []TermCount {
	out := make([]TermCount, 0, len(counts))
	for term, c := range counts {
		if term == "" {
			continue
		}
		out = append(out, TermCount{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
