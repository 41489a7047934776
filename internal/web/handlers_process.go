package web

// handlers_process.go controls review runs: start, progress polling and
// cancellation. Runs execute in the background; only one runs at a time.

import (
	"fmt"
	"net/http"

	"github.com/weMaron/excel-processor/internal/logging"
)

// handleSetInstruction stores the review instruction for subsequent runs.
func (s *Server) handleSetInstruction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Instruction string `json:"instruction"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, fmt.Errorf("decode instruction: %w", err), http.StatusBadRequest)
		return
	}
	s.ws.SetInstruction(body.Instruction)
	writeJSON(w, http.StatusOK, map[string]string{"instruction": body.Instruction})
}

// handleStartProcess launches a review run over the confirmed dataset. An
// instruction in the body replaces the stored one first.
func (s *Server) handleStartProcess(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.respondError(w, r,
			fmt.Errorf("review engine not configured, set GEMINI_API_KEY"),
			http.StatusServiceUnavailable)
		return
	}

	if r.ContentLength > 0 {
		var body struct {
			Instruction string `json:"instruction"`
		}
		if err := decodeJSON(r, &body); err != nil {
			s.respondError(w, r, fmt.Errorf("decode process request: %w", err), http.StatusBadRequest)
			return
		}
		if body.Instruction != "" {
			s.ws.SetInstruction(body.Instruction)
		}
	}

	if err := s.ws.StartRun(s.engine); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("review run started")
	writeJSON(w, http.StatusAccepted, s.ws.RunProgress())
}

// handleProcessProgress returns a snapshot of the active (or last) run.
func (s *Server) handleProcessProgress(w http.ResponseWriter, r *http.Request) {
	p := s.ws.RunProgress()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   p.Total,
		"done":    p.Done,
		"skipped": p.Skipped,
		"failed":  p.Failed,
		"running": p.Running,
		"percent": p.Percent(),
	})
}

// handleCancelProcess requests cancellation. The in-flight batch still
// completes; the run stops at the next batch boundary.
func (s *Server) handleCancelProcess(w http.ResponseWriter, r *http.Request) {
	cancelled := s.ws.CancelRun()
	if cancelled {
		logging.FromContext(r.Context()).Info("review run cancellation requested")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}
