package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig        `toml:"server"`        // HTTP server settings
	Logging       LoggingConfig       `toml:"logging"`       // Application logging settings
	Storage       StorageConfig       `toml:"storage"`       // Data persistence settings
	Capture       CaptureConfig       `toml:"capture"`       // Audio capture settings
	Transcription TranscriptionConfig `toml:"transcription"` // Speech-to-text settings
	LLM           LLMConfig           `toml:"llm"`           // Report generation defaults
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	DataDir    string `toml:"data_dir"`    // Application data directory (database, recordings)
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file (default: <data_dir>/meetings.db)
}

// CaptureConfig contains audio capture configuration
type CaptureConfig struct {
	FFmpegPath    string `toml:"ffmpeg_path"`    // Path to the ffmpeg binary (default: "ffmpeg", resolved on PATH)
	InputFormat   string `toml:"input_format"`   // ffmpeg input format: "alsa", "pulse", "avfoundation", "dshow"
	SampleRate    int    `toml:"sample_rate"`    // Recording sample rate in Hz (default: 16000)
	Channels      int    `toml:"channels"`       // Recording channel count (default: 1)
	RecordingsDir string `toml:"recordings_dir"` // Directory for audio artifacts (default: <data_dir>/recordings)
}

// TranscriptionConfig contains settings for the speech-to-text backend
type TranscriptionConfig struct {
	BaseURL          string `toml:"base_url"`            // Base URL of the faster-whisper HTTP server
	Model            string `toml:"model"`               // Default whisper model size (tiny, base, small, medium, large-v3)
	Language         string `toml:"language"`            // Default language hint ("" = auto-detect)
	TimeoutSeconds   int    `toml:"timeout_seconds"`     // HTTP timeout for one-shot transcription requests
	CheckIntervalSec int    `toml:"check_interval_secs"` // Streaming: seconds between growth checks on the audio file
	MinChunkSecs     int    `toml:"min_chunk_secs"`      // Streaming: minimum seconds of new audio before transcribing
}

// LLMConfig contains report generation defaults. Provider credentials saved
// from the settings UI live in the database; these are bootstrap values used
// when no row exists yet.
type LLMConfig struct {
	Provider       string `toml:"provider"`        // "openai", "anthropic", "ollama", or "gemini"
	BaseURL        string `toml:"base_url"`        // Provider base URL override
	Model          string `toml:"model"`           // Model name (e.g., "llama3")
	TimeoutSeconds int    `toml:"timeout_seconds"` // HTTP timeout for report generation
}

// Load loads the configuration from the given TOML file
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.DataDir, "meetings.db")
	}

	if c.Capture.FFmpegPath == "" {
		c.Capture.FFmpegPath = "ffmpeg"
	}
	if c.Capture.InputFormat == "" {
		c.Capture.InputFormat = defaultInputFormat()
	}
	if c.Capture.SampleRate <= 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.Channels <= 0 {
		c.Capture.Channels = 1
	}
	if c.Capture.RecordingsDir == "" {
		c.Capture.RecordingsDir = filepath.Join(c.Storage.DataDir, "recordings")
	}

	if c.Transcription.BaseURL == "" {
		return fmt.Errorf("transcription.base_url is required")
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "base"
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = 120
	}
	if c.Transcription.CheckIntervalSec <= 0 {
		c.Transcription.CheckIntervalSec = 5
	}
	if c.Transcription.MinChunkSecs <= 0 {
		c.Transcription.MinChunkSecs = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama", "gemini":
	default:
		return fmt.Errorf("unsupported llm provider: %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 120
	}

	return nil
}
