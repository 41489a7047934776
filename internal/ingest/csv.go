package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM is the byte order mark Windows tools prepend to CSV exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV decodes a comma-separated file. A UTF-8 BOM is skipped and ragged
// records are tolerated; short records leave the trailing columns absent.
func ReadCSV(r io.Reader) (*Sheet, error) {
	reader := csv.NewReader(newBOMSkippingReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return buildSheet(records), nil
}

// newBOMSkippingReader removes a leading UTF-8 BOM if present.
func newBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err == nil && head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		br.Discard(len(utf8BOM))
	}
	return br
}
