package web

// handlers_report.go serves report settings, the rendered PDF report and
// the CSV export. Reports always run over the filtered view; a single group
// downloads as one PDF, multiple groups as a zip with one PDF per group.

import (
	"fmt"
	"net/http"

	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/logging"
	"github.com/weMaron/excel-processor/internal/report"
)

func (s *Server) handleGetReportSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Settings())
}

func (s *Server) handleSetReportSettings(w http.ResponseWriter, r *http.Request) {
	var settings report.Settings
	if err := decodeJSON(r, &settings); err != nil {
		s.respondError(w, r, fmt.Errorf("decode report settings: %w", err), http.StatusBadRequest)
		return
	}
	if err := settings.Validate(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.ws.SetSettings(settings)
	writeJSON(w, http.StatusOK, settings)
}

// handleReport renders the grouped analysis report over the filtered view.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	settings := s.ws.Settings()
	if err := settings.Validate(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	rows, _, err := s.ws.FilteredView()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if len(rows) == 0 {
		s.respondError(w, r, fmt.Errorf("no rows pass the active filters"), http.StatusUnprocessableEntity)
		return
	}

	groups := report.GroupRows(rows, settings.GroupBy)
	description := dataset.DescribeRules(s.ws.Rules())

	logger := logging.FromContext(r.Context())
	logger.Info("rendering report", "groups", len(groups), "rows", len(rows))

	if len(groups) == 1 {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="rapport.pdf"`)
		if err := report.RenderGroupPDF(w, groups[0], settings, description); err != nil {
			logger.Error("report render failed", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="rapporten.zip"`)
	if err := report.RenderZip(w, groups, settings, description); err != nil {
		logger.Error("report render failed", "error", err)
	}
}

// handleExportCSV streams the filtered view as CSV. Columns default to the
// full descriptor sequence; report settings narrow them when selected.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, descs, err := s.ws.FilteredView()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	columns := s.ws.Settings().SelectedColumns
	if len(columns) == 0 {
		columns = make([]string, len(descs))
		for i, d := range descs {
			columns[i] = d.DisplayName
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="export.csv"`)
	if err := report.ExportCSV(w, rows, columns); err != nil {
		logging.FromContext(r.Context()).Error("csv export failed", "error", err)
	}
}
