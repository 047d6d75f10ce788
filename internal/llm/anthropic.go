package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// AnthropicProvider generates reports via the messages API
type AnthropicProvider struct {
	config Config
	client *http.Client
}

// NewAnthropicProvider creates an Anthropic-backed report generator
func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	return &AnthropicProvider{config: cfg, client: newHTTPClient()}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// GenerateReport sends the transcript for analysis and parses the report
func (p *AnthropicProvider) GenerateReport(ctx context.Context, transcript string) (*ReportContent, error) {
	if p.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	req := anthropicRequest{
		Model:     p.config.Model,
		MaxTokens: 4096,
		System:    p.config.systemPrompt(),
		Messages: []anthropicMessage{
			{Role: "user", Content: transcriptPrompt(transcript)},
		},
	}

	headers := map[string]string{
		"x-api-key":         p.config.APIKey,
		"anthropic-version": "2023-06-01",
	}

	body, err := postJSON(ctx, p.client, baseURL+"/messages", headers, req)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic returned no content")
	}

	return parseReportResponse(resp.Content[0].Text)
}
