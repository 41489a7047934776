package report

// pdf.go renders one landscape PDF per group: a title block with the group
// name, the free-form header text and the active filter description, then
// the projected table with failure rows highlighted and link columns
// rendered as clickable cells, closed by an outcome summary.

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/inference"
)

const (
	pageMargin   = 14.0
	rowHeight    = 7.0
	summaryspace = 30.0
)

// RenderGroupPDF writes a single group's report as a PDF document.
func RenderGroupPDF(w io.Writer, group Group, settings Settings, filtersDescription string) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	pageWidth, pageHeight := pdf.GetPageSize()
	usable := pageWidth - 2*pageMargin

	// Title block
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(40, 40, 40)
	pdf.CellFormat(usable, 10, "Analyse Rapport", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(usable, 8, fmt.Sprintf("%s: %s", settings.GroupBy, group.Name), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	if strings.TrimSpace(settings.HeaderText) != "" {
		pdf.MultiCell(usable, 5, settings.HeaderText, "", "L", false)
	}
	pdf.MultiCell(usable, 5, "Filters: "+filtersDescription, "", "L", false)
	pdf.Ln(3)

	renderTable(pdf, group, settings, usable)
	renderSummary(pdf, group, pageHeight)

	return pdf.Output(w)
}

// renderTable draws the header row and one line per data row. Rows without
// an approving verdict are filled light red; the status cell itself is bold.
func renderTable(pdf *fpdf.Fpdf, group Group, settings Settings, usable float64) {
	columns := settings.SelectedColumns
	colWidth := usable / float64(len(columns))

	// Header
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(79, 70, 229)
	pdf.SetTextColor(255, 255, 255)
	for _, col := range columns {
		pdf.CellFormat(colWidth, rowHeight, clip(pdf, col, colWidth), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	// Body
	for _, row := range group.Rows {
		status := row.Fields[inference.StatusField].StringForm()
		failed := !inference.IsApproved(status)

		for _, col := range columns {
			value := row.Fields[col]

			fill := false
			if failed {
				pdf.SetFillColor(254, 226, 226)
				pdf.SetTextColor(153, 27, 27)
				fill = true
			} else {
				pdf.SetTextColor(40, 40, 40)
			}

			style := ""
			if failed && col == inference.StatusField {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, 8)

			if isLinkColumn(col) && value.Kind == dataset.KindString && strings.HasPrefix(value.Str, "http") {
				pdf.SetTextColor(0, 0, 255)
				pdf.CellFormat(colWidth, rowHeight, "Klik hier", "1", 0, "L", fill, 0, value.Str)
				continue
			}

			pdf.CellFormat(colWidth, rowHeight, clip(pdf, value.StringForm(), colWidth), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

// renderSummary draws the outcome counts, breaking to a fresh page when the
// table ends too close to the bottom.
func renderSummary(pdf *fpdf.Fpdf, group Group, pageHeight float64) {
	summary := Summarize(group.Rows)

	y := pdf.GetY() + 10
	if y+summaryspace > pageHeight-pageMargin {
		pdf.AddPage()
		y = pageMargin + 6
	}
	pdf.SetY(y)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(40, 40, 40)
	pdf.CellFormat(0, 7, fmt.Sprintf("Totaal regels: %d", summary.Total), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Correct: %d", summary.Approved), "", 1, "L", false, 0, "")
	if summary.Failed > 0 {
		pdf.SetTextColor(153, 27, 27)
	}
	pdf.CellFormat(0, 7, fmt.Sprintf("Foutief: %d", summary.Failed), "", 1, "L", false, 0, "")
}

// clip shortens a string until it fits the cell width.
func clip(pdf *fpdf.Fpdf, s string, width float64) string {
	for len(s) > 1 && pdf.GetStringWidth(s) > width-2 {
		s = s[:len(s)-1]
	}
	return s
}

// RenderZip writes one PDF per group into a zip archive. Group names are
// sanitized into file names.
func RenderZip(w io.Writer, groups []Group, settings Settings, filtersDescription string) error {
	zw := zip.NewWriter(w)
	for _, group := range groups {
		f, err := zw.Create(fileName(group.Name))
		if err != nil {
			return fmt.Errorf("create zip entry: %w", err)
		}
		if err := RenderGroupPDF(f, group, settings, filtersDescription); err != nil {
			return fmt.Errorf("render group %q: %w", group.Name, err)
		}
	}
	return zw.Close()
}

// fileName turns a group name into a safe pdf file name.
func fileName(group string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, group)
	if cleaned == "" {
		cleaned = "rapport"
	}
	return cleaned + ".pdf"
}
