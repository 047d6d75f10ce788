package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultSystemPrompt is used when the user has not configured a custom
// prompt. It instructs the model to answer with a bare JSON report.
const DefaultSystemPrompt = `Sei un assistente specializzato nell'analisi di trascrizioni di riunioni.
Analizza la seguente trascrizione e fornisci:

1. **Punti Salienti**: I 3-5 argomenti piu importanti discussi
2. **Partecipanti**: Le persone menzionate o che hanno partecipato
3. **Action Items**: Compiti, decisioni o azioni da intraprendere

Rispondi SOLO con un JSON valido nel seguente formato, senza altro testo:
{
  "highlights": ["punto 1", "punto 2", "punto 3"],
  "participants": ["persona 1", "persona 2"],
  "action_items": ["azione 1", "azione 2"]
}`

// ErrNotConfigured is returned when the selected provider is missing
// required configuration (typically an API key)
var ErrNotConfigured = errors.New("llm provider not configured")

// Config is the runtime configuration of a provider instance
type Config struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
}

// systemPrompt returns the configured prompt or the default one
func (c *Config) systemPrompt() string {
	if c.SystemPrompt != "" {
		return c.SystemPrompt
	}
	return DefaultSystemPrompt
}

// ReportContent is a structured meeting report extracted from a model
// response. RawResponse keeps the unparsed model output for auditing.
type ReportContent struct {
	Highlights   []string `json:"highlights"`
	Participants []string `json:"participants"`
	ActionItems  []string `json:"action_items"`
	RawResponse  string   `json:"raw_response"`
}

// Provider generates a meeting report from a transcript
type Provider interface {
	GenerateReport(ctx context.Context, transcript string) (*ReportContent, error)
}

// NewProvider builds the provider named in cfg.Provider
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

// transcriptPrompt formats the user message sent to every provider
func transcriptPrompt(transcript string) string {
	return "Trascrizione della riunione:\n\n" + transcript
}

// parseReportResponse extracts the report JSON from a model response.
// Models frequently wrap the JSON in prose or code fences, so the parser
// cuts from the first '{' to the last '}' before decoding. Missing fields
// decode as empty lists.
func parseReportResponse(response string) (*ReportContent, error) {
	jsonStr := response
	if start := strings.Index(response, "{"); start >= 0 {
		if end := strings.LastIndex(response, "}"); end > start {
			jsonStr = response[start : end+1]
		}
	}

	var parsed struct {
		Highlights   []string `json:"highlights"`
		Participants []string `json:"participants"`
		ActionItems  []string `json:"action_items"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse report JSON: %w", err)
	}

	return &ReportContent{
		Highlights:   parsed.Highlights,
		Participants: parsed.Participants,
		ActionItems:  parsed.ActionItems,
		RawResponse:  response,
	}, nil
}
