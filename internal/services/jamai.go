package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JamAIConfig names the project, credentials and action tables used on
// JamAI Base.
type JamAIConfig struct {
	BaseURL   string
	ProjectID string
	Token     string
	Timeout   time.Duration

	CTTable         string
	ImageColumn     string
	ContextColumn   string
	FindingsColumn  string
	DiagnosisColumn string
	SOPColumn       string

	AudioTable            string
	AudioInputColumn      string
	AudioTranscriptColumn string
}

// JamAIClient talks to the JamAI Base REST API. The vision model, context
// injection and guideline retrieval all run inside the CT action table.
type JamAIClient struct {
	cfg    JamAIConfig
	Client *http.Client
}

// NewJamAIClient fails fast when the project or token is missing.
func NewJamAIClient(cfg JamAIConfig) (*JamAIClient, error) {
	if cfg.ProjectID == "" || cfg.Token == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &JamAIClient{
		cfg: cfg,
		Client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Response from the file upload endpoint
type jamaiUploadResponse struct {
	URI string `json:"uri"`
}

// Request to add rows to an action table
type jamaiRowsAddRequest struct {
	TableID string              `json:"table_id"`
	Data    []map[string]string `json:"data"`
	Stream  bool                `json:"stream"`
}

// Response from adding rows with stream=false
type jamaiRowsAddResponse struct {
	Rows []struct {
		RowID   string                      `json:"row_id"`
		Columns map[string]jamaiColumnValue `json:"columns"`
	} `json:"rows"`
}

type jamaiColumnValue struct {
	Text    string `json:"text"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (v jamaiColumnValue) text() string {
	if v.Text != "" {
		return v.Text
	}
	if len(v.Choices) == 0 {
		return ""
	}
	return v.Choices[0].Message.Content
}

// UploadFile sends a staged file to JamAI file storage and returns its URI.
func (c *JamAIClient) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	var resp jamaiUploadResponse
	if err := c.do(ctx, "upload file", http.MethodPost, "/api/v1/files/upload", mw.FormDataContentType(), &body, &resp); err != nil {
		return "", err
	}
	if resp.URI == "" {
		return "", fmt.Errorf("upload file: %w", ErrEmptyResponse)
	}
	return resp.URI, nil
}

// Analyze adds one row to the CT action table and reads back the generated
// findings, diagnosis and SOP columns.
func (c *JamAIClient) Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error) {
	row := map[string]string{c.cfg.ImageColumn: req.ImageRef}
	withContext := req.Context != "" && c.cfg.ContextColumn != ""
	if withContext {
		row[c.cfg.ContextColumn] = req.Context
	}

	cols, err := c.addRow(ctx, "analyze", c.cfg.CTTable, row)
	if err != nil {
		return AnalysisResult{}, err
	}

	return AnalysisResult{
		Findings:    cols[c.cfg.FindingsColumn].text(),
		Diagnosis:   cols[c.cfg.DiagnosisColumn].text(),
		SOP:         cols[c.cfg.SOPColumn].text(),
		ContextUsed: withContext,
	}, nil
}

// Transcribe adds one row to the audio action table.
func (c *JamAIClient) Transcribe(ctx context.Context, audioRef string) (string, error) {
	cols, err := c.addRow(ctx, "transcribe", c.cfg.AudioTable, map[string]string{
		c.cfg.AudioInputColumn: audioRef,
	})
	if err != nil {
		return "", err
	}
	return cols[c.cfg.AudioTranscriptColumn].text(), nil
}

// Ping checks that the project is reachable with the configured token.
func (c *JamAIClient) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/api/v1/projects/"+c.cfg.ProjectID, "", nil, nil)
}

func (c *JamAIClient) addRow(ctx context.Context, op, table string, row map[string]string) (map[string]jamaiColumnValue, error) {
	reqBody := jamaiRowsAddRequest{
		TableID: table,
		Data:    []map[string]string{row},
		Stream:  false,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}

	var resp jamaiRowsAddResponse
	if err := c.do(ctx, op, http.MethodPost, "/api/v1/gen_tables/action/rows/add", "application/json", bytes.NewReader(jsonBody), &resp); err != nil {
		return nil, err
	}
	if len(resp.Rows) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return resp.Rows[0].Columns, nil
}

// do sends one authenticated request and decodes a JSON answer into out
// when out is non-nil.
func (c *JamAIClient) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("X-PROJECT-ID", c.cfg.ProjectID)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &PlatformError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
