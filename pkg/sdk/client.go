package coursekb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Link is one citation attached to an answer.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// AskResult is the service's reply to one question.
type AskResult struct {
	Answer string `json:"answer"`
	Links  []Link `json:"links"`
}

// HealthStatus represents the aggregated service health.
type HealthStatus struct {
	Status string            `json:"status"`           // "ok" or "degraded"
	Checks map[string]string `json:"checks,omitempty"` // component -> "ok"/"error"
}

// Client talks to a coursekb deployment over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{httpClient: http.DefaultClient}
	for _, o := range opts {
		o.apply(cfg)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    cfg.httpClient,
	}
}

// Ask sends a question and returns the answer with its citation links.
func (c *Client) Ask(ctx context.Context, question string) (AskResult, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return AskResult{}, fmt.Errorf("coursekb: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api", bytes.NewReader(body))
	if err != nil {
		return AskResult{}, fmt.Errorf("coursekb: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AskResult{}, fmt.Errorf("coursekb: ask: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return AskResult{}, fmt.Errorf("coursekb: unexpected status %d", resp.StatusCode)
	}

	var res AskResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return AskResult{}, fmt.Errorf("coursekb: decode response: %w", err)
	}
	return res, nil
}

// Health fetches the service health report. A degraded report is returned
// without error; err is only set when the endpoint is unreachable.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("coursekb: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("coursekb: health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return HealthStatus{}, fmt.Errorf("coursekb: decode response: %w", err)
	}
	return status, nil
}
