package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/recruitx/recruitx/internal/interview"
)

// ManagementDeps holds what the operator API needs.
type ManagementDeps struct {
	Service *interview.Service
	Token   string
}

// NewManagementHandler returns the bearer-protected operator API.
func NewManagementHandler(deps ManagementDeps) http.Handler {
	r := chi.NewRouter()
	managementRoutes(r, deps)
	return r
}

func managementRoutes(r chi.Router, deps ManagementDeps) {
	r.Use(BearerAuth(deps.Token))

	r.Post("/interviews/schedule", handleSchedule(deps))
	r.Post("/interviews/{id}/start", handleStart(deps))
	r.Post("/interviews/{id}/complete", handleComplete(deps))
	r.Post("/interviews/{id}/cancel", handleCancel(deps))
	r.Get("/interviews/{id}/status", handleStatus(deps))
	r.Get("/interviews/{id}/responses", handleResponses(deps))

	r.Post("/candidates", handleCreateCandidate(deps))
	r.Get("/candidates", handleListCandidates(deps))
	r.Get("/candidates/{id}", handleGetCandidate(deps))
	r.Put("/candidates/{id}", handleUpdateCandidate(deps))
	r.Delete("/candidates/{id}", handleDeleteCandidate(deps))

	r.Get("/reports", handleListReports(deps))
	r.Get("/reports/summary", handleReportSummary(deps))
	r.Get("/reports/interview/{id}", handleInterviewReport(deps))
	r.Get("/reports/candidate/{id}", handleCandidateReports(deps))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func handleSchedule(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := deps.Service.Schedule(r.Context(), interview.ScheduleInput{
			CandidateID:    req.CandidateID,
			JobDescription: req.JobDescription,
			ScheduledAt:    req.ScheduledAt,
		})
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ScheduleResponse{InterviewID: res.InterviewID, Questions: questionViews(res.Questions)})
	}
}

func handleStart(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Service.Start(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StartResponse{CallSID: res.CallSID, Questions: questionViews(res.Questions)})
	}
}

func handleComplete(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := deps.Service.Complete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CompleteResponse{Report: reportView(rep)})
	}
}

func handleCancel(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}

func handleStatus(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Service.Status(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusView(st))
	}
}

func handleResponses(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := deps.Service.Responses(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, responseViews(rs))
	}
}

func handleCreateCandidate(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CandidateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		c, err := deps.Service.CreateCandidate(r.Context(), interview.CandidateInput(req))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, candidateView(c))
	}
}

func handleListCandidates(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 100, 1000)
		offset := parseIntParam(r, "offset", 0, 0)
		cs, err := deps.Service.ListCandidates(r.Context(), offset, limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		out := make([]CandidateView, len(cs))
		for i, c := range cs {
			out[i] = candidateView(c)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetCandidate(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Service.GetCandidate(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, candidateView(c))
	}
}

func handleUpdateCandidate(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CandidateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		c, err := deps.Service.UpdateCandidate(r.Context(), chi.URLParam(r, "id"), interview.CandidateInput(req))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, candidateView(c))
	}
}

func handleDeleteCandidate(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Service.DeleteCandidate(r.Context(), chi.URLParam(r, "id")); err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleListReports(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 100, 1000)
		offset := parseIntParam(r, "offset", 0, 0)
		reps, err := deps.Service.Reports(r.Context(), offset, limit)
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reportViews(reps))
	}
}

func handleReportSummary(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := deps.Service.Summary(r.Context())
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func handleInterviewReport(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := deps.Service.Report(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reportView(rep))
	}
}

func handleCandidateReports(deps ManagementDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reps, err := deps.Service.CandidateReports(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reportViews(reps))
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
