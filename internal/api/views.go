package api

import (
	"time"

	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/storage"
)

// JSON shapes of the management API.

type QuestionView struct {
	Index      int    `json:"index"`
	Question   string `json:"question"`
	Criteria   string `json:"evaluation_criteria,omitempty"`
	Skill      string `json:"skill_assessed,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type CandidateView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ResponseView struct {
	QuestionIndex int       `json:"question_index"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	CreatedAt     time.Time `json:"created_at"`
}

type ReportView struct {
	ID               string    `json:"id"`
	InterviewID      string    `json:"interview_id"`
	OverallScore     float64   `json:"overall_score"`
	Strengths        []string  `json:"strengths"`
	Weaknesses       []string  `json:"weaknesses"`
	DetailedAnalysis string    `json:"detailed_analysis"`
	Recommendations  string    `json:"recommendations"`
	HiringDecision   string    `json:"hiring_decision"`
	CreatedAt        time.Time `json:"created_at"`
}

type StatusView struct {
	InterviewID    string     `json:"interview_id"`
	CandidateID    string     `json:"candidate_id"`
	Status         string     `json:"status"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	CallSID        string     `json:"call_sid,omitempty"`
	Answered       int        `json:"answered"`
	TotalQuestions int        `json:"total_questions"`
}

type ScheduleRequest struct {
	CandidateID    string    `json:"candidate_id"`
	JobDescription string    `json:"job_description"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

type ScheduleResponse struct {
	InterviewID string         `json:"interview_id"`
	Questions   []QuestionView `json:"questions"`
}

type StartResponse struct {
	CallSID   string         `json:"call_sid"`
	Questions []QuestionView `json:"questions"`
}

type CompleteResponse struct {
	Report ReportView `json:"report"`
}

type CandidateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func questionViews(qs []storage.Question) []QuestionView {
	out := make([]QuestionView, len(qs))
	for i, q := range qs {
		out[i] = QuestionView{Index: q.Index, Question: q.Text, Criteria: q.Criteria, Skill: q.Skill, Difficulty: q.Difficulty}
	}
	return out
}

func candidateView(c storage.Candidate) CandidateView {
	return CandidateView{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func responseViews(rs []storage.Response) []ResponseView {
	out := make([]ResponseView, len(rs))
	for i, r := range rs {
		out[i] = ResponseView{QuestionIndex: r.QuestionIndex, Question: r.QuestionText, Answer: r.RawAnswer, CreatedAt: r.CreatedAt}
	}
	return out
}

func reportView(r storage.Report) ReportView {
	return ReportView{
		ID:               r.ID,
		InterviewID:      r.InterviewID,
		OverallScore:     r.OverallScore,
		Strengths:        nonNil(r.Strengths),
		Weaknesses:       nonNil(r.Weaknesses),
		DetailedAnalysis: r.DetailedAnalysis,
		Recommendations:  r.Recommendations,
		HiringDecision:   r.HiringDecision,
		CreatedAt:        r.CreatedAt,
	}
}

func reportViews(rs []storage.Report) []ReportView {
	out := make([]ReportView, len(rs))
	for i, r := range rs {
		out[i] = reportView(r)
	}
	return out
}

func statusView(s interview.Status) StatusView {
	return StatusView{
		InterviewID:    s.InterviewID,
		CandidateID:    s.CandidateID,
		Status:         s.Status,
		ScheduledAt:    s.ScheduledAt,
		StartedAt:      s.StartedAt,
		CompletedAt:    s.CompletedAt,
		CallSID:        s.CallSID,
		Answered:       s.Answered,
		TotalQuestions: s.TotalQuestions,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
