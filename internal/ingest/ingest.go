// Package ingest decodes uploaded spreadsheets into the header sequence and
// raw rows the dataset engine consumes. Supported formats are .xlsx (first
// sheet) and .csv. Decoding assigns each kept row its synthetic identifier;
// cell typing is not this package's concern.
package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weMaron/excel-processor/internal/dataset"
)

// Sheet is the decoded result handed to the core: the ordered header names
// and the raw rows, each carrying its rowId.
type Sheet struct {
	Headers []string
	Rows    []dataset.RawRow
}

// ReadFile decodes a spreadsheet based on the file name's extension.
func ReadFile(name string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q (expected .xlsx or .csv)", filepath.Ext(name))
	}
}

// buildSheet maps a matrix of cells into header + raw rows. The first record
// is the header row; fully empty rows are dropped. Row ids are the ordinal
// position among kept rows, starting at 0, matching ingestion order.
func buildSheet(records [][]string) *Sheet {
	if len(records) == 0 {
		return &Sheet{Headers: []string{}, Rows: []dataset.RawRow{}}
	}

	headers := records[0]
	rows := make([]dataset.RawRow, 0, len(records)-1)

	for _, record := range records[1:] {
		if isEmptyRow(record) {
			continue
		}
		cells := make(map[string]any, len(headers))
		for i, header := range headers {
			if i < len(record) {
				cells[header] = record[i]
			}
		}
		rows = append(rows, dataset.RawRow{
			ID:    strconv.Itoa(len(rows)),
			Cells: cells,
		})
	}

	return &Sheet{Headers: headers, Rows: rows}
}

// isEmptyRow reports whether every cell in the record is blank.
func isEmptyRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
