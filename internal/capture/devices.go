package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// Device represents an audio input source
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsInput   bool   `json:"is_input"`
	IsDefault bool   `json:"is_default"`
}

// DeviceLister enumerates audio input sources from the underlying audio
// subsystem
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// Registry tracks the available audio devices and the user's selection.
// A selection is never validated against the current device list; a stale
// id is passed through and rejected (or not) by the capture backend.
type Registry struct {
	lister   DeviceLister
	logger   *logger.Logger
	mu       sync.RWMutex
	devices  []Device
	selected string
}

// NewRegistry creates a device registry backed by the given lister
func NewRegistry(lister DeviceLister, log *logger.Logger) *Registry {
	return &Registry{
		lister: lister,
		logger: log.Named("devices"),
	}
}

// Refresh fetches the current device list and, when no explicit selection
// was made yet, selects the default device (flagged default, else the first
// enumerated one).
func (r *Registry) Refresh(ctx context.Context) ([]Device, error) {
	devices, err := r.lister.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = devices
	if r.selected == "" {
		for _, d := range devices {
			if d.IsDefault {
				r.selected = d.ID
				break
			}
		}
		if r.selected == "" && len(devices) > 0 {
			r.selected = devices[0].ID
		}
	}

	r.logger.Debug("Refreshed audio devices",
		logger.Int("count", len(devices)),
		logger.String("selected", r.selected))

	out := make([]Device, len(devices))
	copy(out, devices)
	return out, nil
}

// Select records the user's explicit device choice
func (r *Registry) Select(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = id
}

// Selected returns the currently selected device id ("" = none)
func (r *Registry) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Devices returns a snapshot of the last refreshed device list
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// FFmpegLister enumerates devices via "ffmpeg -sources <format>"
type FFmpegLister struct {
	ffmpegPath  string
	inputFormat string
	logger      *logger.Logger
}

// NewFFmpegLister creates a device lister using the ffmpeg binary
func NewFFmpegLister(ffmpegPath, inputFormat string, log *logger.Logger) *FFmpegLister {
	return &FFmpegLister{
		ffmpegPath:  ffmpegPath,
		inputFormat: inputFormat,
		logger:      log.Named("ffmpeg-devices"),
	}
}

// ListDevices runs ffmpeg device discovery and parses its output
func (l *FFmpegLister) ListDevices(ctx context.Context) ([]Device, error) {
	cmd := exec.CommandContext(ctx, l.ffmpegPath, "-hide_banner", "-sources", l.inputFormat)
	out, err := cmd.CombinedOutput()
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg device discovery failed: %w", err)
	}

	devices := parseSources(out)
	l.logger.Debug("Enumerated devices via ffmpeg",
		logger.String("format", l.inputFormat),
		logger.Int("count", len(devices)))
	return devices, nil
}

// parseSources parses "ffmpeg -sources" output. Lines look like:
//
//	Auto-detected sources for pulse:
//	* alsa_input.pci-0000_00_1f.3.analog-stereo [Built-in Audio]
//	  bluez_input.AA_BB [Headset]
//
// A leading asterisk marks the default source.
func parseSources(out []byte) []Device {
	var devices []Device

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasSuffix(trimmed, ":") {
			continue
		}

		isDefault := false
		if strings.HasPrefix(trimmed, "*") {
			isDefault = true
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "*"))
		}

		id := trimmed
		name := trimmed
		if idx := strings.Index(trimmed, " ["); idx > 0 {
			id = trimmed[:idx]
			name = strings.TrimSuffix(strings.TrimSpace(trimmed[idx+2:]), "]")
		}
		if id == "" {
			continue
		}

		devices = append(devices, Device{
			ID:        id,
			Name:      name,
			IsInput:   true,
			IsDefault: isDefault,
		})
	}

	return devices
}
