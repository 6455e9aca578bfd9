// Package insight generates post-session AI analysis: a summary, review
// points for low-understanding moments, and a teaching suggestion.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is the payload sent to the insight endpoint.
type Request struct {
	Type    string `json:"type"`
	Context string `json:"context"`
	Data    any    `json:"data,omitempty"`
}

// Provider produces insight text from a request. Implemented by Client;
// mocked in tests.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client calls an insight generation HTTP endpoint.
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

// NewClient creates an insight HTTP client with a bounded timeout.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// insightResponse is the endpoint's reply. The response field may be a
// single string or a list of strings; failures arrive as {"error": "..."}.
type insightResponse struct {
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

// responseText flattens the response field, joining list items one per line.
func (r insightResponse) responseText() (string, error) {
	if len(r.Response) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(r.Response, &s); err == nil {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(r.Response, &list); err != nil {
		return "", fmt.Errorf("unexpected response shape: %s", r.Response)
	}
	return strings.Join(list, "\n"), nil
}

// Generate posts the request and returns the generated text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("insight request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result insightResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("insight service: %s", result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("insight service: unexpected status %d", resp.StatusCode)
	}

	response, err := result.responseText()
	if err != nil {
		return "", fmt.Errorf("insight service: %w", err)
	}
	text := strings.TrimSpace(response)
	if text == "" {
		return "", fmt.Errorf("insight service: empty response")
	}
	return text, nil
}
