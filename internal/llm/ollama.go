package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaProvider generates reports via a local ollama instance
type OllamaProvider struct {
	config Config
	client *http.Client
}

// NewOllamaProvider creates an ollama-backed report generator
func NewOllamaProvider(cfg Config) *OllamaProvider {
	return &OllamaProvider{config: cfg, client: newHTTPClient()}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// GenerateReport sends the transcript for analysis and parses the report
func (p *OllamaProvider) GenerateReport(ctx context.Context, transcript string) (*ReportContent, error) {
	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	req := ollamaRequest{
		Model:  p.config.Model,
		Prompt: transcriptPrompt(transcript),
		System: p.config.systemPrompt(),
		Stream: false,
	}

	body, err := postJSON(ctx, p.client, baseURL+"/api/generate", nil, req)
	if err != nil {
		return nil, err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}

	return parseReportResponse(resp.Response)
}
