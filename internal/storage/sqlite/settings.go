package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// AppSettings represents process-wide application settings
type AppSettings struct {
	WhisperModel       string  `json:"whisper_model"`
	DefaultLanguage    *string `json:"default_language"`
	AutoTranscribe     bool    `json:"auto_transcribe"`
	AutoGenerateReport bool    `json:"auto_generate_report"`
}

// LLMSettings represents the stored LLM provider configuration
type LLMSettings struct {
	Provider     string  `json:"provider"`
	APIKey       *string `json:"api_key"`
	BaseURL      *string `json:"base_url"`
	Model        string  `json:"model"`
	SystemPrompt *string `json:"system_prompt"`
}

// SettingsStorage handles the key/value settings table. Saves replace the
// whole settings object; callers read-modify-write.
type SettingsStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSettingsStorage creates a settings storage sharing the meeting
// storage's database connection
func NewSettingsStorage(db *sql.DB, log *logger.Logger) *SettingsStorage {
	return &SettingsStorage{
		db:     db,
		logger: log.Named("sqlite-settings"),
	}
}

func (s *SettingsStorage) get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

func (s *SettingsStorage) upsert(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}
	return nil
}

// GetAppSettings returns the stored application settings, with defaults for
// anything never saved
func (s *SettingsStorage) GetAppSettings() (*AppSettings, error) {
	settings := &AppSettings{
		WhisperModel: "base",
	}

	if v, ok := s.get("whisper_model"); ok {
		settings.WhisperModel = v
	}
	if v, ok := s.get("default_language"); ok {
		settings.DefaultLanguage = &v
	}
	if v, ok := s.get("auto_transcribe"); ok {
		settings.AutoTranscribe = v == "true"
	}
	if v, ok := s.get("auto_generate_report"); ok {
		settings.AutoGenerateReport = v == "true"
	}

	return settings, nil
}

// SaveAppSettings replaces the stored application settings
func (s *SettingsStorage) SaveAppSettings(settings *AppSettings) error {
	if err := s.upsert("whisper_model", settings.WhisperModel); err != nil {
		return err
	}
	if settings.DefaultLanguage != nil {
		if err := s.upsert("default_language", *settings.DefaultLanguage); err != nil {
			return err
		}
	}
	if err := s.upsert("auto_transcribe", boolValue(settings.AutoTranscribe)); err != nil {
		return err
	}
	if err := s.upsert("auto_generate_report", boolValue(settings.AutoGenerateReport)); err != nil {
		return err
	}
	return nil
}

// GetLLMSettings returns the stored LLM configuration, falling back to the
// given bootstrap values for anything never saved
func (s *SettingsStorage) GetLLMSettings(defaultProvider, defaultModel, defaultBaseURL string) (*LLMSettings, error) {
	settings := &LLMSettings{
		Provider: defaultProvider,
		Model:    defaultModel,
	}
	if defaultBaseURL != "" {
		settings.BaseURL = &defaultBaseURL
	}

	if v, ok := s.get("llm_provider"); ok {
		settings.Provider = v
	}
	if v, ok := s.get("llm_model"); ok {
		settings.Model = v
	}
	if v, ok := s.get("llm_api_key"); ok {
		settings.APIKey = &v
	}
	if v, ok := s.get("llm_base_url"); ok {
		settings.BaseURL = &v
	}
	if v, ok := s.get("llm_system_prompt"); ok {
		settings.SystemPrompt = &v
	}

	return settings, nil
}

// SaveLLMSettings replaces the stored LLM configuration
func (s *SettingsStorage) SaveLLMSettings(settings *LLMSettings) error {
	if err := s.upsert("llm_provider", settings.Provider); err != nil {
		return err
	}
	if err := s.upsert("llm_model", settings.Model); err != nil {
		return err
	}
	if settings.APIKey != nil {
		if err := s.upsert("llm_api_key", *settings.APIKey); err != nil {
			return err
		}
	}
	if settings.BaseURL != nil {
		if err := s.upsert("llm_base_url", *settings.BaseURL); err != nil {
			return err
		}
	}
	if settings.SystemPrompt != nil {
		if err := s.upsert("llm_system_prompt", *settings.SystemPrompt); err != nil {
			return err
		}
	}
	return nil
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
