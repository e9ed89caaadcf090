package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// Client talks to an external inference service for forgery detection and risk classification.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ForgeryDetector = (*Client)(nil)
var _ ports.Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

type detectResponse struct {
	IsFake     bool    `json:"is_fake"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Detect sends the text for counterfeit analysis.
func (c *Client) Detect(ctx context.Context, text string) (domain.ForgeryResult, error) {
	var resp detectResponse
	if err := c.post(ctx, "/detect", map[string]any{"text": text}, &resp); err != nil {
		return domain.ForgeryResult{}, fmt.Errorf("detect forgery: %w", err)
	}

	return domain.ForgeryResult{
		IsFake:     resp.IsFake,
		Confidence: unit(resp.Confidence),
		Rationale:  resp.Rationale,
	}, nil
}

type classifyResponse struct {
	Score              float64  `json:"score"`
	Summary            string   `json:"summary"`
	Flags              []string `json:"flags"`
	RequiresModeration bool     `json:"requires_moderation"`
}

// Classify requests a risk score for the content.
func (c *Client) Classify(ctx context.Context, title, summary, body string) (domain.ClassificationResult, error) {
	payload := map[string]any{
		"title":   title,
		"summary": summary,
		"body":    body,
	}

	var resp classifyResponse
	if err := c.post(ctx, "/classify", payload, &resp); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("classify content: %w", err)
	}

	flags := resp.Flags
	if flags == nil {
		flags = []string{}
	}
	return domain.ClassificationResult{
		Score:              math.Round(unit(resp.Score)*100) / 100,
		Summary:            resp.Summary,
		Flags:              flags,
		RequiresModeration: resp.RequiresModeration,
	}, nil
}

func unit(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
