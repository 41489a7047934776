package inference

// gemini.go implements Engine against the Gemini generateContent REST API.
//
// Link columns get special treatment: any http-prefixed value in a column
// declared as a link is fetched and, when it turns out to be an image or a
// PDF, attached to the prompt as inline data so the model can compare the
// row against the document.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/weMaron/excel-processor/internal/dataset"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// DefaultBaseURL is the Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultMaxAttachmentSize caps fetched link documents at 20MB.
const DefaultMaxAttachmentSize = 20 << 20

// GeminiClient calls the Gemini generateContent endpoint over HTTP.
type GeminiClient struct {
	apiKey            string
	model             string
	baseURL           string
	httpClient        *http.Client
	maxAttachmentSize int64
}

// GeminiOption customizes a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithModel overrides the model name.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API endpoint. Used by tests to point the client
// at a local server.
func WithBaseURL(url string) GeminiOption {
	return func(c *GeminiClient) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client (timeouts, transport).
func WithHTTPClient(hc *http.Client) GeminiOption {
	return func(c *GeminiClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxAttachmentSize caps the size of fetched link documents.
func WithMaxAttachmentSize(n int64) GeminiOption {
	return func(c *GeminiClient) {
		if n > 0 {
			c.maxAttachmentSize = n
		}
	}
}

// NewGeminiClient creates a Gemini-backed engine. The API key is required.
func NewGeminiClient(apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	c := &GeminiClient{
		apiKey:            apiKey,
		model:             DefaultModel,
		baseURL:           DefaultBaseURL,
		httpClient:        &http.Client{Timeout: 60 * time.Second},
		maxAttachmentSize: DefaultMaxAttachmentSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Wire types for the generateContent request/response.

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Evaluate sends one row to the model and decodes its verdict.
func (c *GeminiClient) Evaluate(ctx context.Context, req Request) (Result, error) {
	parts := []geminiPart{{Text: buildPrompt(req)}}

	for _, blob := range c.fetchAttachments(ctx, req) {
		parts = append(parts, geminiPart{InlineData: blob})
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("gemini request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var decoded geminiResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}
	if decoded.Error != nil {
		return Result{}, fmt.Errorf("gemini API error: %s", decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("no completion returned")
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return decodeVerdict(text.String()), nil
}

// buildPrompt embeds the row JSON and the user instruction into the fixed
// reviewing prompt. The model is asked for bare JSON matching Result.
func buildPrompt(req Request) string {
	rowJSON, err := json.Marshal(req.Row.Fields)
	if err != nil {
		rowJSON = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("You are an intelligent data processor.\n\n")
	b.WriteString("Task: ")
	b.WriteString(req.Instruction)
	b.WriteString("\n\nData Row: ")
	b.Write(rowJSON)
	b.WriteString("\n\nIf there are any attached documents (images or PDFs), they correspond to the \"link\" columns in the data row. ")
	b.WriteString("Compare the data row with the visual/textual information in the attached files.\n\n")
	b.WriteString("Respond ONLY with a valid JSON object strictly following this schema:\n")
	b.WriteString("{\n")
	b.WriteString("    \"status\": \"Short status string (e.g. Approved, Rejected, Review)\",\n")
	b.WriteString("    \"reasoning\": \"Brief explanation of the decision based on both data and provided documents\"\n")
	b.WriteString("}\n")
	b.WriteString("Do not include markdown formatting or backticks. Just the JSON.")
	return b.String()
}

// fetchAttachments downloads the documents behind http-prefixed link-column
// values. Fetch failures and unsupported content types are skipped silently;
// an unreachable document should not fail the row.
func (c *GeminiClient) fetchAttachments(ctx context.Context, req Request) []*geminiBlob {
	var blobs []*geminiBlob
	for _, desc := range req.Descriptors {
		if desc.Type != dataset.TypeLink {
			continue
		}
		url := req.Row.Fields[desc.DisplayName].StringForm()
		if !strings.HasPrefix(url, "http") {
			continue
		}
		blob, err := c.fetchFile(ctx, url)
		if err != nil || blob == nil {
			continue
		}
		blobs = append(blobs, blob)
	}
	return blobs
}

// fetchFile downloads a single document and base64-encodes it. Only image
// and PDF content types are returned.
func (c *GeminiClient) fetchFile(ctx context.Context, url string) (*geminiBlob, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	mimeType := resp.Header.Get("Content-Type")
	if !strings.Contains(mimeType, "image") && !strings.Contains(mimeType, "pdf") {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxAttachmentSize))
	if err != nil {
		return nil, err
	}

	return &geminiBlob{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// decodeVerdict parses the model's reply into a Result. Markdown code
// fences are stripped first since models wrap JSON in them despite the
// prompt. A reply that still fails to decode becomes an error verdict
// carrying a snippet of the raw text - malformed model output is data,
// not a failure.
func decodeVerdict(text string) Result {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return Result{
			Status:    "Error",
			Reasoning: "AI returned invalid format: " + truncate(cleaned, 50),
		}
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
