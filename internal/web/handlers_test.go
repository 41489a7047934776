package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/weMaron/excel-processor/internal/config"
	"github.com/weMaron/excel-processor/internal/dataset"
	"github.com/weMaron/excel-processor/internal/workspace"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1", Port: 0,
			RequestTimeout: time.Minute,
		},
		Ingest: config.IngestConfig{MaxFileSize: 1 << 20},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
	ws := workspace.New(workspace.Options{BatchSize: 1})
	return NewServer(cfg, ws, nil, nil)
}

func uploadCSV(t *testing.T, s *Server, csvData string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(csvData))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

const sampleCSV = "Naam,Factuurdatum,Waarde\nJansen,01-06-2024,\"€ 100,00\"\nPietersen,15-06-2024,\"€ 250,00\"\n"

func sampleMapping() []dataset.ColumnDescriptor {
	return []dataset.ColumnDescriptor{
		{SourceName: "Naam", DisplayName: "Naam", Type: dataset.TypeString},
		{SourceName: "Factuurdatum", DisplayName: "Datum", Type: dataset.TypeDate},
		{SourceName: "Waarde", DisplayName: "Waarde", Type: dataset.TypeCurrency},
	}
}

func TestHandleUpload(t *testing.T) {
	s := testServer(t)

	rec := uploadCSV(t, s, sampleCSV)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Headers          []string                   `json:"headers"`
		SuggestedMapping []dataset.ColumnDescriptor `json:"suggestedMapping"`
		RowCount         int                        `json:"rowCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Headers) != 3 || resp.RowCount != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.SuggestedMapping[1].Type != dataset.TypeDate {
		t.Errorf("suggested type = %s, want date", resp.SuggestedMapping[1].Type)
	}
}

func TestHandleUpload_MissingFile(t *testing.T) {
	s := testServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleUpload_UnsupportedExtension(t *testing.T) {
	s := testServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "data.txt")
	fw.Write([]byte("x"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleConfirmMappingAndRows(t *testing.T) {
	s := testServer(t)
	uploadCSV(t, s, sampleCSV)

	rec := doJSON(t, s, http.MethodPost, "/api/mapping", sampleMapping())
	if rec.Code != http.StatusOK {
		t.Fatalf("mapping status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/rows", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rows status = %d", rec.Code)
	}

	var resp struct {
		Rows []struct {
			ID     string                     `json:"rowId"`
			Fields map[string]json.RawMessage `json:"fields"`
		} `json:"rows"`
		Total    int `json:"total"`
		Filtered int `json:"filtered"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || resp.Filtered != 2 || len(resp.Rows) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	// Dates serialize in ISO form.
	if got := string(resp.Rows[0].Fields["Datum"]); got != `"2024-06-01"` {
		t.Errorf("Datum = %s", got)
	}
}

func TestHandleRows_WithoutMapping(t *testing.T) {
	s := testServer(t)
	uploadCSV(t, s, sampleCSV)

	rec := doJSON(t, s, http.MethodGet, "/api/rows", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "NO_DATASET" {
		t.Errorf("code = %q, want NO_DATASET", resp.Code)
	}
}

func TestHandleSetFilters(t *testing.T) {
	s := testServer(t)
	uploadCSV(t, s, sampleCSV)
	doJSON(t, s, http.MethodPost, "/api/mapping", sampleMapping())

	rec := doJSON(t, s, http.MethodPut, "/api/filters", []dataset.Rule{
		{Field: "Waarde", Operator: dataset.OpGreaterThan, Value: "150"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Filters  []dataset.Rule `json:"filters"`
		Filtered int            `json:"filtered"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Filtered != 1 {
		t.Errorf("filtered = %d, want 1", resp.Filtered)
	}
	if resp.Filters[0].ID == "" {
		t.Error("normalized rule did not receive an id")
	}
}

func TestHandleOperators(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/operators?type=date", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Operators []dataset.Operator `json:"operators"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Operators) != 3 || resp.Operators[0] != dataset.OpEqualsDate {
		t.Errorf("operators = %v", resp.Operators)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/operators?type=guess", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}
}

func TestHandleProcess_WithoutEngine(t *testing.T) {
	s := testServer(t)
	uploadCSV(t, s, sampleCSV)
	doJSON(t, s, http.MethodPost, "/api/mapping", sampleMapping())

	rec := doJSON(t, s, http.MethodPost, "/api/process", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleProfiles_WithoutStore(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/profiles", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleReportSettings_Validation(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodPut, "/api/report/settings", map[string]any{
		"groupBy": "", "selectedColumns": []string{}, "headerText": "",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/report/settings", map[string]any{
		"groupBy": "Naam", "selectedColumns": []string{"Naam"}, "headerText": "Controle",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestHandleReport_SingleGroupIsPDF(t *testing.T) {
	s := testServer(t)
	uploadCSV(t, s, sampleCSV)
	doJSON(t, s, http.MethodPost, "/api/mapping", sampleMapping())
	doJSON(t, s, http.MethodPut, "/api/report/settings", map[string]any{
		"groupBy": "Bestaat niet", "selectedColumns": []string{"Naam", "Waarde"},
	})

	// Every row lacks the group-by field, so there is exactly one group.
	rec := doJSON(t, s, http.MethodGet, "/api/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF document")
	}
}

func TestHandleReport_MultipleGroupsIsZip(t *testing.T) {
	s := testServer(t)
	uploadCSV(t, s, sampleCSV)
	doJSON(t, s, http.MethodPost, "/api/mapping", sampleMapping())
	doJSON(t, s, http.MethodPut, "/api/report/settings", map[string]any{
		"groupBy": "Naam", "selectedColumns": []string{"Naam", "Waarde"},
	})

	rec := doJSON(t, s, http.MethodGet, "/api/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("Content-Type = %q, want application/zip", got)
	}
}

func TestHandleExportCSV(t *testing.T) {
	s := testServer(t)
	uploadCSV(t, s, sampleCSV)
	doJSON(t, s, http.MethodPost, "/api/mapping", sampleMapping())

	rec := doJSON(t, s, http.MethodGet, "/api/export/csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Jansen") || !strings.Contains(body, "01-06-2024") {
		t.Errorf("csv body = %q", body)
	}
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
