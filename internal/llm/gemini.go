package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider generates reports via the generateContent API
type GeminiProvider struct {
	config Config
	client *http.Client
}

// NewGeminiProvider creates a Gemini-backed report generator
func NewGeminiProvider(cfg Config) *GeminiProvider {
	return &GeminiProvider{config: cfg, client: newHTTPClient()}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GenerateReport sends the transcript for analysis and parses the report
func (p *GeminiProvider) GenerateReport(ctx context.Context, transcript string) (*ReportContent, error) {
	if p.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	req := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: p.config.systemPrompt()}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: transcriptPrompt(transcript)}}},
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", baseURL, p.config.Model)
	headers := map[string]string{
		"x-goog-api-key": p.config.APIKey,
	}

	body, err := postJSON(ctx, p.client, url, headers, req)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return parseReportResponse(resp.Candidates[0].Content.Parts[0].Text)
}
