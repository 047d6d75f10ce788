package llm

import (
	"context"
	"fmt"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/storage/sqlite"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

type meetingStore interface {
	GetMeeting(id string) (*sqlite.MeetingWithDetails, error)
	SaveReport(meetingID string, highlights, participants, actionItems []string, rawResponse, provider, model string) (*sqlite.Report, error)
}

type settingsStore interface {
	GetLLMSettings(defaultProvider, defaultModel, defaultBaseURL string) (*sqlite.LLMSettings, error)
}

// Service generates and persists AI meeting reports. The provider is
// rebuilt per request from the saved settings, so configuration changes
// apply immediately.
type Service struct {
	config   *config.LLMConfig
	meetings meetingStore
	settings settingsStore
	logger   *logger.Logger

	// test seam; defaults to NewProvider
	newProvider func(Config) (Provider, error)
}

// NewService creates a report generation service
func NewService(cfg *config.LLMConfig, meetings meetingStore, settings settingsStore, log *logger.Logger) *Service {
	return &Service{
		config:      cfg,
		meetings:    meetings,
		settings:    settings,
		logger:      log.Named("llm"),
		newProvider: NewProvider,
	}
}

// GenerateReport runs the configured provider over a meeting's transcript
// and stores the resulting report. The meeting moves to status "completed"
// once the report is saved.
func (s *Service) GenerateReport(ctx context.Context, meetingID string) (*sqlite.Report, error) {
	meeting, err := s.meetings.GetMeeting(meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Transcript == nil || *meeting.Transcript == "" {
		return nil, fmt.Errorf("meeting %s has no transcript to analyze", meetingID)
	}

	saved, err := s.settings.GetLLMSettings(s.config.Provider, s.config.Model, s.config.BaseURL)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Provider: saved.Provider,
		Model:    saved.Model,
	}
	if saved.APIKey != nil {
		cfg.APIKey = *saved.APIKey
	}
	if saved.BaseURL != nil {
		cfg.BaseURL = *saved.BaseURL
	}
	if saved.SystemPrompt != nil {
		cfg.SystemPrompt = *saved.SystemPrompt
	}

	provider, err := s.newProvider(cfg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Generating report",
		logger.String("meeting_id", meetingID),
		logger.String("provider", cfg.Provider),
		logger.String("model", cfg.Model))

	content, err := provider.GenerateReport(ctx, *meeting.Transcript)
	if err != nil {
		return nil, fmt.Errorf("report generation failed: %w", err)
	}

	report, err := s.meetings.SaveReport(meetingID,
		content.Highlights, content.Participants, content.ActionItems,
		content.RawResponse, cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Report saved",
		logger.String("meeting_id", meetingID),
		logger.String("report_id", report.ID),
		logger.Int("highlights", len(content.Highlights)))
	return report, nil
}
