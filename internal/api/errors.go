package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/recruitx/recruitx/internal/interview"
)

const maxRequestBodySize = 1 << 20 // 1MB

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// serviceError writes err with the status code of its failure kind.
func serviceError(w http.ResponseWriter, err error) {
	kind := interview.Kind(err)
	switch kind {
	case "not_found":
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case "validation":
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case "already_complete", "invalid_index":
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case "upstream":
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
