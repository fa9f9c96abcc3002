package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/recruitx/recruitx/internal/dialogue"
	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/observability"
	"github.com/recruitx/recruitx/internal/twiml"
)

// maxWebhookBodySize caps the form bodies Twilio posts.
const maxWebhookBodySize = 64 << 10

// lastResort is sent if a fallback script itself cannot be rendered.
var lastResort = []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<Response><Say>Sorry, an application error occurred. Please try again later.</Say><Hangup></Hangup></Response>`)

// WebhookDeps holds what the telephony webhooks need.
type WebhookDeps struct {
	Engine  *dialogue.Engine
	Voice   twiml.Voice
	Metrics *observability.Metrics
	Logger  *slog.Logger
	// Verify authenticates requests; nil accepts every request.
	Verify func(http.Handler) http.Handler
}

// NewWebhookHandler returns the routes Twilio calls during an interview.
// Voice webhooks always answer 200 with TwiML, whatever happened.
func NewWebhookHandler(deps WebhookDeps) http.Handler {
	r := chi.NewRouter()
	webhookRoutes(r, deps)
	return r
}

func webhookRoutes(r chi.Router, deps WebhookDeps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Verify != nil {
		r.Use(deps.Verify)
	}

	r.Post("/interviews/{id}/twiml", handleEntry(deps))
	r.Post("/interviews/{id}/response/{question_index}", handleAnswer(deps))
	r.Post("/interviews/{id}/status", handleCallStatus(deps))
}

func handleEntry(deps WebhookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
		if err := r.ParseForm(); err != nil {
			deps.Logger.Warn("unreadable webhook form", "interview_id", id, "error", err)
		}
		res := deps.Engine.Enter(r.Context(), id, r.PostFormValue("CallSid"))
		writeScript(w, deps, "entry", id, res)
		deps.Metrics.Webhook("entry", outcome(res), time.Since(start))
	}
}

func handleAnswer(deps WebhookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chi.URLParam(r, "id")
		index, err := strconv.Atoi(chi.URLParam(r, "question_index"))
		if err != nil {
			index = -1
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
		if err := r.ParseForm(); err != nil {
			deps.Logger.Warn("unreadable webhook form", "interview_id", id, "error", err)
		}

		res := deps.Engine.Answer(r.Context(), id, index, callerInput(r))
		writeScript(w, deps, "answer", id, res)
		deps.Metrics.Webhook("answer", outcome(res), time.Since(start))
	}
}

// callerInput prefers the speech transcript over keypad digits.
func callerInput(r *http.Request) string {
	if s := strings.TrimSpace(r.PostFormValue("SpeechResult")); s != "" {
		return s
	}
	return strings.TrimSpace(r.PostFormValue("Digits"))
}

func handleCallStatus(deps WebhookDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
		if err := r.ParseForm(); err != nil {
			deps.Logger.Warn("unreadable webhook form", "interview_id", id, "error", err)
		}
		deps.Logger.Info("call status",
			"interview_id", id,
			"call_sid", r.PostFormValue("CallSid"),
			"call_status", r.PostFormValue("CallStatus"),
			"duration", r.PostFormValue("CallDuration"),
		)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Status received"})
		deps.Metrics.Webhook("status", "ok", time.Since(start))
	}
}

func writeScript(w http.ResponseWriter, deps WebhookDeps, endpoint, interviewID string, res dialogue.Result) {
	if res.Err != nil {
		kind := interview.Kind(res.Err)
		deps.Metrics.Fallback(kind)
		deps.Logger.Warn("webhook fallback", "endpoint", endpoint, "interview_id", interviewID, "kind", kind, "error", res.Err)
	}

	body, err := twiml.Render(dialogue.Respond(res), deps.Voice)
	if err != nil {
		deps.Logger.Error("rendering twiml failed", "endpoint", endpoint, "interview_id", interviewID, "error", err)
		body = lastResort
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func outcome(res dialogue.Result) string {
	if res.Err != nil {
		return "fallback"
	}
	return "ok"
}
