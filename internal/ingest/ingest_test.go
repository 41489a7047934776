package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"Naam,Datum,Waarde",
		"Jansen,01-06-2024,\"€ 100,00\"",
		",,",
		"Pietersen,15-06-2024,\"€ 250,00\"",
		"De Vries,,",
	}, "\n")

	sheet, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	wantHeaders := []string{"Naam", "Datum", "Waarde"}
	if len(sheet.Headers) != len(wantHeaders) {
		t.Fatalf("headers = %v, want %v", sheet.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if sheet.Headers[i] != h {
			t.Errorf("headers[%d] = %q, want %q", i, sheet.Headers[i], h)
		}
	}

	// The fully empty record is dropped; row ids are dense ordinals.
	if len(sheet.Rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(sheet.Rows))
	}
	for i, want := range []string{"0", "1", "2"} {
		if sheet.Rows[i].ID != want {
			t.Errorf("rows[%d].ID = %q, want %q", i, sheet.Rows[i].ID, want)
		}
	}

	if got := sheet.Rows[1].Cells["Naam"]; got != "Pietersen" {
		t.Errorf("rows[1][Naam] = %v, want Pietersen", got)
	}
	if got := sheet.Rows[0].Cells["Waarde"]; got != "€ 100,00" {
		t.Errorf("rows[0][Waarde] = %v, want € 100,00", got)
	}
}

func TestReadCSV_SkipsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFNaam,Aantal\nJansen,3\n"

	sheet, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if sheet.Headers[0] != "Naam" {
		t.Errorf("headers[0] = %q, BOM not stripped", sheet.Headers[0])
	}
}

func TestReadCSV_RaggedRecords(t *testing.T) {
	input := "A,B,C\n1,2\n1,2,3,4\n"

	sheet, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(sheet.Rows))
	}

	// Short record: trailing column absent entirely.
	if _, ok := sheet.Rows[0].Cells["C"]; ok {
		t.Error("short record produced a cell for the missing column")
	}
	// Long record: the extra cell has no header and is dropped.
	if len(sheet.Rows[1].Cells) != 3 {
		t.Errorf("long record cells = %d, want 3", len(sheet.Rows[1].Cells))
	}
}

func TestReadCSV_HeadersOnly(t *testing.T) {
	sheet, err := ReadCSV(strings.NewReader("A,B\n"))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(sheet.Headers) != 2 || len(sheet.Rows) != 0 {
		t.Errorf("got %d headers, %d rows; want 2 headers, 0 rows", len(sheet.Headers), len(sheet.Rows))
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sw := [][]any{
		{"Naam", "Datum", "Waarde"},
		{"Jansen", "01-06-2024", "€ 100,00"},
		{"", "", ""},
		{"Pietersen", "15-06-2024", "€ 250,00"},
	}
	for i, row := range sw {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	sheet, err := ReadXLSX(&buf)
	if err != nil {
		t.Fatalf("ReadXLSX() error = %v", err)
	}

	if len(sheet.Headers) != 3 || sheet.Headers[0] != "Naam" {
		t.Fatalf("headers = %v", sheet.Headers)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (empty row dropped)", len(sheet.Rows))
	}
	if sheet.Rows[1].ID != "1" {
		t.Errorf("rows[1].ID = %q, want 1", sheet.Rows[1].ID)
	}
	if got := sheet.Rows[1].Cells["Naam"]; got != "Pietersen" {
		t.Errorf("rows[1][Naam] = %v, want Pietersen", got)
	}
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	if _, err := ReadFile("data.txt", strings.NewReader("x")); err == nil {
		t.Fatal("ReadFile accepted an unsupported extension")
	}
}

func TestReadFile_DispatchByExtension(t *testing.T) {
	sheet, err := ReadFile("Upload.CSV", strings.NewReader("A\n1\n"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(sheet.Rows) != 1 {
		t.Errorf("len(rows) = %d, want 1", len(sheet.Rows))
	}
}
