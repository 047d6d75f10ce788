package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider generates reports via the chat completions API
type OpenAIProvider struct {
	config Config
	client *http.Client
}

// NewOpenAIProvider creates an OpenAI-backed report generator
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	return &OpenAIProvider{config: cfg, client: newHTTPClient()}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateReport sends the transcript for analysis and parses the report
func (p *OpenAIProvider) GenerateReport(ctx context.Context, transcript string) (*ReportContent, error) {
	if p.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	req := openAIRequest{
		Model: p.config.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: p.config.systemPrompt()},
			{Role: "user", Content: transcriptPrompt(transcript)},
		},
		Temperature: 0.3,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + p.config.APIKey,
	}

	body, err := postJSON(ctx, p.client, baseURL+"/chat/completions", headers, req)
	if err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return parseReportResponse(resp.Choices[0].Message.Content)
}
