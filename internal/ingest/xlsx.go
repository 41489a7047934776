package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX decodes the first sheet of an .xlsx workbook. Cells arrive as
// their formatted string values, so dates and amounts reach the parser in
// the form the spreadsheet displays them.
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Sheet{Headers: []string{}, Rows: nil}, nil
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return buildSheet(records), nil
}
