package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/attune-labs/attune-engine/internal/capture"
)

// LemonFoxClient calls an OpenAI-compatible /v1/audio/transcriptions
// endpoint (LemonFox hosts one; any compatible server works).
// Implements the Provider interface.
type LemonFoxClient struct {
	url     string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

// lemonfoxResponse is the JSON response from the transcription API.
// Errors arrive as {"error": "..."} with a non-200 status.
type lemonfoxResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// NewLemonFoxClient creates a new transcription HTTP client.
func NewLemonFoxClient(url, apiKey, model string, timeout time.Duration) *LemonFoxClient {
	return &LemonFoxClient{
		url:     url,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (lf *LemonFoxClient) Name() string { return "lemonfox" }

// Model returns the configured model identifier.
func (lf *LemonFoxClient) Model() string { return lf.model }

// Transcribe sends one audio chunk as multipart/form-data and returns the
// recognized text. Each chunk is attempted at most once; the caller decides
// what a failure means.
func (lf *LemonFoxClient) Transcribe(ctx context.Context, chunk capture.Chunk) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fmt.Sprintf("chunk-%d.webm", chunk.Seq))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(chunk.Data); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	if lf.model != "" {
		w.WriteField("model", lf.model)
	}
	w.WriteField("language", "en")
	w.WriteField("response_format", "json")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lf.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if lf.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+lf.apiKey)
	}

	resp, err := lf.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result lemonfoxResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return nil, &ServiceError{Status: resp.StatusCode, Body: result.Error}
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, ErrEmptyResult
	}

	return &Response{Text: text, Language: "en"}, nil
}
