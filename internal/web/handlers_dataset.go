package web

// handlers_dataset.go covers the upload-to-filtered-view flow: sheet upload,
// column mapping confirmation, typed row listing and filter rule management.

import (
	"context"
	"fmt"
	"net/http"

	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/ingest"
	"github.com/weMaron/excel-processor/internal/logging"
	"github.com/weMaron/excel-processor/internal/profile"
)

// rowJSON is the wire shape of a typed row.
type rowJSON struct {
	ID     string                   `json:"rowId"`
	Fields map[string]dataset.Value `json:"fields"`
}

func toRowJSON(rows []dataset.TypedRow) []rowJSON {
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON{ID: row.ID, Fields: row.Fields}
	}
	return out
}

// uploadResponse is returned after a successful sheet upload. The suggested
// mapping is header-token based; when a saved profile matches the header set
// it is included so the client can offer to apply it.
type uploadResponse struct {
	Headers          []string                   `json:"headers"`
	SuggestedMapping []dataset.ColumnDescriptor `json:"suggestedMapping"`
	RowCount         int                        `json:"rowCount"`
	MatchedProfile   *profile.Profile           `json:"matchedProfile,omitempty"`
}

// handleUpload receives a spreadsheet as multipart form data under the
// "file" field and loads it into the workspace, replacing any prior state.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Ingest.MaxFileSize); err != nil {
		s.respondError(w, r, fmt.Errorf("parse upload: %w", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("missing file field: %w", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	sheet, err := ingest.ReadFile(header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	suggested := s.ws.LoadSheet(sheet)
	logger.Info("sheet uploaded",
		"file", header.Filename,
		"headers", len(sheet.Headers),
		"rows", len(sheet.Rows),
	)

	resp := uploadResponse{
		Headers:          sheet.Headers,
		SuggestedMapping: suggested,
		RowCount:         len(sheet.Rows),
	}
	if p, ok := s.matchProfile(r.Context(), sheet.Headers); ok {
		resp.MatchedProfile = &p
	}

	writeJSON(w, http.StatusOK, resp)
}

// matchProfile finds the most recently updated profile covering the exact
// header set. Profile lookups are best effort during upload.
func (s *Server) matchProfile(ctx context.Context, headers []string) (profile.Profile, bool) {
	if s.profiles == nil {
		return profile.Profile{}, false
	}
	saved, err := s.profiles.List(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("profile match skipped", "error", err)
		return profile.Profile{}, false
	}
	return profile.BestMatch(saved, headers)
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	headers, err := s.ws.Headers()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"headers": headers})
}

// handleConfirmMapping accepts the user-confirmed column descriptors and
// builds the typed dataset.
func (s *Server) handleConfirmMapping(w http.ResponseWriter, r *http.Request) {
	var descs []dataset.ColumnDescriptor
	if err := decodeJSON(r, &descs); err != nil {
		s.respondError(w, r, fmt.Errorf("decode mapping: %w", err), http.StatusBadRequest)
		return
	}
	if len(descs) == 0 {
		s.respondError(w, r, fmt.Errorf("mapping must contain at least one column"), http.StatusBadRequest)
		return
	}

	if err := s.ws.ConfirmMapping(descs); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	ds, err := s.ws.Dataset()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("mapping confirmed",
		"columns", len(descs), "rows", ds.Len())
	writeJSON(w, http.StatusOK, map[string]any{
		"columns": ds.Descriptors(),
		"rows":    ds.Len(),
	})
}

// handleRows returns the filtered view: the rows passing every active rule
// plus the column descriptors and counts.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	rows, descs, err := s.ws.FilteredView()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	ds, err := s.ws.Dataset()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns":  descs,
		"rows":     toRowJSON(rows),
		"total":    ds.Len(),
		"filtered": len(rows),
	})
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"filters": s.ws.Rules()})
}

// handleSetFilters replaces the rule set. Operators illegal for a rule's
// column type are normalized; the effective rules come back in the response.
func (s *Server) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	var rules []dataset.Rule
	if err := decodeJSON(r, &rules); err != nil {
		s.respondError(w, r, fmt.Errorf("decode filters: %w", err), http.StatusBadRequest)
		return
	}

	normalized, err := s.ws.SetRules(rules)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	rows, _, err := s.ws.FilteredView()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filters":  normalized,
		"filtered": len(rows),
	})
}

// handleAddFilter appends a fresh rule for the requested field with the
// first legal operator for the field's type.
func (s *Server) handleAddFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Field string `json:"field"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, fmt.Errorf("decode filter: %w", err), http.StatusBadRequest)
		return
	}
	if body.Field == "" {
		s.respondError(w, r, fmt.Errorf("field is required"), http.StatusBadRequest)
		return
	}

	rule, err := s.ws.AddRule(body.Field)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleOperators lists the legal operators for a column type, for building
// filter editors.
func (s *Server) handleOperators(w http.ResponseWriter, r *http.Request) {
	t := dataset.FieldType(r.URL.Query().Get("type"))
	if !t.Valid() {
		s.respondError(w, r, fmt.Errorf("unknown column type %q", t), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":      t,
		"operators": dataset.OperatorsFor(t),
	})
}
