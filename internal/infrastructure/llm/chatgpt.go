package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// ChatGPTClient implements ports.Translator backed by OpenAI-compatible chat completion APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Translator = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig) *ChatGPTClient {
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type content struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Translate asks the model to rewrite the item in language and returns its JSON answer.
func (c *ChatGPTClient) Translate(ctx context.Context, title, summary, body, language string) (domain.TranslationResult, error) {
	if c == nil {
		return domain.TranslationResult{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.TranslationResult{}, fmt.Errorf("chatgpt client misconfigured")
	}

	item, err := json.Marshal(content{Title: title, Summary: summary, Body: body})
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("marshal item: %w", err)
	}

	reqBody, err := json.Marshal(map[string]any{
		"model": c.model,
		"response_format": map[string]string{
			"type": "json_object",
		},
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt, language)},
			{"role": "user", "content": string(item)},
		},
	})
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TranslationResult{}, fmt.Errorf("send translation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.TranslationResult{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return domain.TranslationResult{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.TranslationResult{}, fmt.Errorf("chatgpt response has no choices")
	}

	var out content
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &out); err != nil {
		return domain.TranslationResult{}, fmt.Errorf("decode translated item: %w", err)
	}

	return domain.TranslationResult{
		Title:    fallback(out.Title, title),
		Summary:  fallback(out.Summary, summary),
		Body:     fallback(out.Body, body),
		Language: language,
	}, nil
}

func fallback(value, original string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return original
}

func safePrompt(prompt, language string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = "You translate news items. Reply with a JSON object holding the keys title, summary and body, translated into the requested language without adding commentary."
	}
	return prompt + "\nTarget language: " + language
}
