package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
[server]
port = 8080

[transcription]
base_url = "http://localhost:8000"
`

func TestLoadAndValidateDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("data", "meetings.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, "ffmpeg", cfg.Capture.FFmpegPath)
	assert.Equal(t, 16000, cfg.Capture.SampleRate)
	assert.Equal(t, 1, cfg.Capture.Channels)
	assert.Equal(t, "base", cfg.Transcription.Model)
	assert.Equal(t, 5, cfg.Transcription.CheckIntervalSec)
	assert.Equal(t, 10, cfg.Transcription.MinChunkSecs)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[server]
port = 0

[transcription]
base_url = "http://localhost:8000"
`))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresTranscriptionBaseURL(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[server]
port = 8080
`))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
[llm]
provider = "bard"
`))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[server]
port = 9999
host = "0.0.0.0"

[storage]
data_dir = "/var/lib/meet"

[capture]
input_format = "alsa"
sample_rate = 44100

[transcription]
base_url = "http://whisper:8000"
model = "large-v3"
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "alsa", cfg.Capture.InputFormat)
	assert.Equal(t, 44100, cfg.Capture.SampleRate)
	assert.Equal(t, "large-v3", cfg.Transcription.Model)
	assert.Equal(t, filepath.Join("/var/lib/meet", "meetings.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, filepath.Join("/var/lib/meet", "recordings"), cfg.Capture.RecordingsDir)
}

func TestLoadWithFallbackPrefersExplicitPath(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
