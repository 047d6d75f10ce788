package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// Client talks to a faster-whisper HTTP server exposing the
// OpenAI-compatible /v1/audio/transcriptions endpoint
type Client struct {
	config     *config.TranscriptionConfig
	logger     *logger.Logger
	httpClient *http.Client
}

// NewClient creates a transcription client
func NewClient(cfg *config.TranscriptionConfig, log *logger.Logger) *Client {
	return &Client{
		config: cfg,
		logger: log.Named("transcription"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Transcribe sends a complete audio file for transcription
func (c *Client) Transcribe(ctx context.Context, audioPath string, language string) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	return c.TranscribeReader(ctx, filepath.Base(audioPath), f, language)
}

// TranscribeReader sends audio bytes for transcription. Used by the
// streaming follower for partial chunks cut out of a growing recording.
func (c *Client) TranscribeReader(ctx context.Context, filename string, audio io.Reader, language string) (*Result, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to copy audio data: %w", err)
	}

	w.WriteField("model", c.config.Model)
	w.WriteField("response_format", "verbose_json")
	if language != "" && language != "auto" {
		w.WriteField("language", language)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := c.config.BaseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription server returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	c.logger.Debug("Transcription completed",
		logger.String("file", filename),
		logger.String("language", result.Language),
		logger.Int("segments", len(result.Segments)),
		logger.Duration("took", time.Since(start)))
	return &result, nil
}
