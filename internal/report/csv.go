package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/weMaron/excel-processor/internal/dataset"
)

// ExportCSV writes rows as CSV with the given column selection. Values use
// their display string form (dates as dd-mm-yyyy, numbers without trailing
// zeros, null as empty).
func ExportCSV(w io.Writer, rows []dataset.TypedRow, columns []string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = row.Fields[col].StringForm()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
