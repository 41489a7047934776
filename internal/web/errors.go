package web

// errors.go provides unified error response handling for the web layer.
// Technical errors are logged server-side with the request id; clients get
// a JSON body with a stable machine-readable code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/weMaron/excel-processor/internal/inference"
	"github.com/weMaron/excel-processor/internal/workspace"
)

// ErrorResponse is the JSON structure for API error responses. Error and
// Message carry the same text; both names are kept for client compatibility.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes the mapped JSON response.
// A zero statusCode lets the error itself pick the status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	code, status := mapError(err)
	if statusCode != 0 {
		status = statusCode
	}

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Message: err.Error(), Code: code})
}

// mapError translates known domain errors into a code and HTTP status.
func mapError(err error) (code string, status int) {
	switch {
	case errors.Is(err, workspace.ErrNoSheet):
		return "NO_SHEET", http.StatusConflict
	case errors.Is(err, workspace.ErrNoDataset):
		return "NO_DATASET", http.StatusConflict
	case errors.Is(err, inference.ErrTooManyRuns):
		return "RUN_IN_PROGRESS", http.StatusConflict
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
