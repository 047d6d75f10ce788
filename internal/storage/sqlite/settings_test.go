package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

func newTestSettings(t *testing.T) *SettingsStorage {
	t.Helper()
	return NewSettingsStorage(newTestStorage(t).GetDB(), logger.NewNop())
}

func TestAppSettingsDefaults(t *testing.T) {
	settings, err := newTestSettings(t).GetAppSettings()
	require.NoError(t, err)
	assert.Equal(t, "base", settings.WhisperModel)
	assert.Nil(t, settings.DefaultLanguage)
	assert.False(t, settings.AutoTranscribe)
	assert.False(t, settings.AutoGenerateReport)
}

func TestAppSettingsRoundTrip(t *testing.T) {
	storage := newTestSettings(t)

	lang := "it"
	require.NoError(t, storage.SaveAppSettings(&AppSettings{
		WhisperModel:       "small",
		DefaultLanguage:    &lang,
		AutoTranscribe:     true,
		AutoGenerateReport: false,
	}))

	settings, err := storage.GetAppSettings()
	require.NoError(t, err)
	assert.Equal(t, "small", settings.WhisperModel)
	require.NotNil(t, settings.DefaultLanguage)
	assert.Equal(t, "it", *settings.DefaultLanguage)
	assert.True(t, settings.AutoTranscribe)
	assert.False(t, settings.AutoGenerateReport)
}

func TestAppSettingsOverwrite(t *testing.T) {
	storage := newTestSettings(t)

	require.NoError(t, storage.SaveAppSettings(&AppSettings{WhisperModel: "small"}))
	require.NoError(t, storage.SaveAppSettings(&AppSettings{WhisperModel: "medium"}))

	settings, err := storage.GetAppSettings()
	require.NoError(t, err)
	assert.Equal(t, "medium", settings.WhisperModel)
}

func TestLLMSettingsBootstrapFallback(t *testing.T) {
	settings, err := newTestSettings(t).GetLLMSettings("ollama", "llama3", "http://localhost:11434")
	require.NoError(t, err)
	assert.Equal(t, "ollama", settings.Provider)
	assert.Equal(t, "llama3", settings.Model)
	require.NotNil(t, settings.BaseURL)
	assert.Equal(t, "http://localhost:11434", *settings.BaseURL)
	assert.Nil(t, settings.APIKey)
	assert.Nil(t, settings.SystemPrompt)
}

func TestLLMSettingsSavedValuesWinOverBootstrap(t *testing.T) {
	storage := newTestSettings(t)

	key := "sk-test"
	prompt := "analizza la riunione"
	require.NoError(t, storage.SaveLLMSettings(&LLMSettings{
		Provider:     "openai",
		Model:        "gpt-4o",
		APIKey:       &key,
		SystemPrompt: &prompt,
	}))

	settings, err := storage.GetLLMSettings("ollama", "llama3", "http://localhost:11434")
	require.NoError(t, err)
	assert.Equal(t, "openai", settings.Provider)
	assert.Equal(t, "gpt-4o", settings.Model)
	require.NotNil(t, settings.APIKey)
	assert.Equal(t, "sk-test", *settings.APIKey)
	require.NotNil(t, settings.SystemPrompt)
	assert.Equal(t, "analizza la riunione", *settings.SystemPrompt)
	// base_url was never saved, bootstrap still applies
	require.NotNil(t, settings.BaseURL)
	assert.Equal(t, "http://localhost:11434", *settings.BaseURL)
}

func TestLLMSettingsAPIKeySurvivesPartialSave(t *testing.T) {
	storage := newTestSettings(t)

	key := "sk-test"
	require.NoError(t, storage.SaveLLMSettings(&LLMSettings{Provider: "openai", Model: "gpt-4o", APIKey: &key}))

	// second save without a key must not wipe the stored one
	require.NoError(t, storage.SaveLLMSettings(&LLMSettings{Provider: "openai", Model: "gpt-4o-mini"}))

	settings, err := storage.GetLLMSettings("ollama", "llama3", "")
	require.NoError(t, err)
	require.NotNil(t, settings.APIKey)
	assert.Equal(t, "sk-test", *settings.APIKey)
	assert.Equal(t, "gpt-4o-mini", settings.Model)
}
