package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// Recorder captures audio from an input device into a WAV file using an
// ffmpeg child process. A single recording may be active at a time.
type Recorder struct {
	config *config.CaptureConfig
	logger *logger.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	outPath   string
	recording bool
}

// NewRecorder creates a new ffmpeg-backed recorder
func NewRecorder(cfg *config.CaptureConfig, log *logger.Logger) *Recorder {
	return &Recorder{
		config: cfg,
		logger: log.Named("recorder"),
	}
}

// Start spawns an ffmpeg process recording the given device into outPath.
// The file is written incrementally, so a transcription follower can read
// it while recording is still in flight. An empty deviceID records from
// the subsystem default.
func (r *Recorder) Start(deviceID, outPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("recording already in progress")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}

	input := deviceID
	if input == "" {
		input = "default"
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", r.config.InputFormat,
		"-i", input,
		"-ac", fmt.Sprintf("%d", r.config.Channels),
		"-ar", fmt.Sprintf("%d", r.config.SampleRate),
		"-c:a", "pcm_s16le",
		"-y",
		outPath,
	}

	cmd := exec.Command(r.config.FFmpegPath, args...)

	// ffmpeg diagnostics go to a sidecar log next to the recording
	logFile, err := os.Create(outPath + ".log")
	if err == nil {
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
			os.Remove(logFile.Name())
		}
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r.cmd = cmd
	r.outPath = outPath
	r.recording = true

	r.logger.Info("Recording started",
		logger.String("device", input),
		logger.String("path", outPath),
		logger.Int("sample_rate", r.config.SampleRate))
	return nil
}

// Stop terminates the ffmpeg process and returns the path of the recorded
// file. ffmpeg gets an interrupt first so it can finalize the WAV header,
// then a kill if it does not exit in time.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return "", fmt.Errorf("no recording in progress")
	}

	cmd := r.cmd
	path := r.outPath
	r.cmd = nil
	r.recording = false

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		r.logger.Warn("ffmpeg did not exit after interrupt, killing",
			logger.String("path", path))
		cmd.Process.Kill()
		<-done
	}

	if closer, ok := cmd.Stderr.(*os.File); ok && closer != nil {
		closer.Close()
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("recording file missing after stop: %w", err)
	}

	r.logger.Info("Recording stopped", logger.String("path", path))
	return path, nil
}

// IsRecording reports whether a capture is currently active
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
