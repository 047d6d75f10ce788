package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/storage/sqlite"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/transcription"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// State is the lifecycle phase of the recording session
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
)

var (
	// ErrSessionActive is returned by Start when a session is already running
	ErrSessionActive = errors.New("a recording session is already active")
	// ErrNoActiveSession is returned by Stop when nothing is recording
	ErrNoActiveSession = errors.New("no active recording session")
	// ErrOperationInFlight is returned when a start or stop is already executing
	ErrOperationInFlight = errors.New("another session operation is in flight")
)

// CaptureService records audio from a device into a file
type CaptureService interface {
	Start(deviceID, outPath string) error
	Stop() (string, error)
}

// MeetingStore persists meetings and transcripts
type MeetingStore interface {
	CreateMeeting(title, audioPath string) (*sqlite.Meeting, error)
	UpdateMeeting(id string, upd sqlite.MeetingUpdate) error
	SaveTranscription(meetingID, content, language string) (string, error)
}

// Canceler stops a live transcription subscription. Cancel blocks until no
// further segment delivery can occur.
type Canceler interface {
	Cancel()
}

// SegmentSource produces live transcript segments by following a growing
// audio file
type SegmentSource interface {
	Follow(ctx context.Context, audioPath, language string, handler func(transcription.Batch)) Canceler
}

// DeviceSelector supplies the currently selected capture device
type DeviceSelector interface {
	Selected() string
}

// StartOptions parameterizes a new recording session
type StartOptions struct {
	Title    string
	DeviceID string // empty = registry selection
	Live     bool   // enable live transcription while recording
	Language string // hint for live transcription, "" = auto
}

// Status is a snapshot of the session for API consumers
type Status struct {
	State          State  `json:"state"`
	MeetingID      string `json:"meeting_id,omitempty"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
}

// Controller drives the recording session state machine. It owns exactly
// one session at a time and moves it Idle -> Recording -> Finalizing ->
// Idle. All collaborators are injected.
type Controller struct {
	capture       CaptureService
	meetings      MeetingStore
	source        SegmentSource
	devices       DeviceSelector
	agg           *Aggregator
	logger        *logger.Logger
	recordingsDir string
	onBatch       func(transcription.Batch)

	// opMu serializes Start and Stop; concurrent callers are rejected
	// rather than queued
	opMu sync.Mutex

	mu        sync.Mutex
	state     State
	meetingID string
	audioPath string
	elapsed   int64
	sub       Canceler
}

// NewController creates a session controller in the Idle state. onBatch,
// when non-nil, receives each live segment batch after it was aggregated
// (used to push updates to connected clients).
func NewController(
	capture CaptureService,
	meetings MeetingStore,
	source SegmentSource,
	devices DeviceSelector,
	recordingsDir string,
	onBatch func(transcription.Batch),
	log *logger.Logger,
) *Controller {
	return &Controller{
		capture:       capture,
		meetings:      meetings,
		source:        source,
		devices:       devices,
		agg:           NewAggregator(),
		logger:        log.Named("session"),
		recordingsDir: recordingsDir,
		onBatch:       onBatch,
		state:         StateIdle,
	}
}

// Start begins a new recording session and returns the persisted meeting.
// Capture is started before the meeting row is created, so a capture
// failure leaves no trace in storage. A concurrent Start or Stop is
// rejected with ErrOperationInFlight.
func (c *Controller) Start(ctx context.Context, opts StartOptions) (*sqlite.Meeting, error) {
	if !c.opMu.TryLock() {
		return nil, ErrOperationInFlight
	}
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	c.mu.Unlock()

	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = c.devices.Selected()
	}

	title := opts.Title
	if title == "" {
		title = "Meeting " + time.Now().Format("2006-01-02 15:04")
	}

	audioPath := filepath.Join(c.recordingsDir,
		fmt.Sprintf("recording_%s.wav", time.Now().Format("20060102_150405")))

	if err := c.capture.Start(deviceID, audioPath); err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	meeting, err := c.meetings.CreateMeeting(title, audioPath)
	if err != nil {
		// capture already runs; stop it so no orphan process keeps the
		// device busy
		if _, stopErr := c.capture.Stop(); stopErr != nil {
			c.logger.Error("Failed to stop capture after meeting creation failed",
				logger.Error(stopErr))
		}
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	c.agg.Reset()

	var sub Canceler
	if opts.Live && c.source != nil {
		// the subscription lives as long as the session, not the start
		// call; Stop cancels it. Deriving it from the caller's context
		// would kill the follower when an HTTP start request completes.
		sub = c.source.Follow(context.Background(), audioPath, opts.Language, func(batch transcription.Batch) {
			c.agg.OnSegments(batch)
			if c.onBatch != nil {
				c.onBatch(batch)
			}
		})
	}

	c.mu.Lock()
	c.state = StateRecording
	c.meetingID = meeting.ID
	c.audioPath = audioPath
	c.elapsed = 0
	c.sub = sub
	c.mu.Unlock()

	c.logger.Info("Recording session started",
		logger.String("meeting_id", meeting.ID),
		logger.String("device", deviceID),
		logger.Bool("live", opts.Live))
	return meeting, nil
}

// Stop finalizes the active session: live transcription is unsubscribed
// first (and awaited), capture is ended, the meeting row gets its duration
// and final status, and the accumulated live transcript is persisted. The
// controller always settles back to Idle; persistence failures are logged
// but do not abort the shutdown sequence.
func (c *Controller) Stop(ctx context.Context) (string, error) {
	if !c.opMu.TryLock() {
		return "", ErrOperationInFlight
	}
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return "", ErrNoActiveSession
	}
	c.state = StateFinalizing
	meetingID := c.meetingID
	elapsed := c.elapsed
	sub := c.sub
	c.mu.Unlock()

	// no segment may arrive after this returns, so the drain below sees
	// the complete transcript
	if sub != nil {
		sub.Cancel()
	}

	audioPath, err := c.capture.Stop()
	if err != nil {
		c.logger.Error("Failed to stop capture",
			logger.String("meeting_id", meetingID),
			logger.Error(err))
	}

	status := sqlite.StatusRecorded
	upd := sqlite.MeetingUpdate{
		DurationSeconds: &elapsed,
		Status:          &status,
	}
	if audioPath != "" {
		upd.AudioPath = &audioPath
	}
	if updErr := c.meetings.UpdateMeeting(meetingID, upd); updErr != nil {
		c.logger.Error("Failed to update meeting after stop",
			logger.String("meeting_id", meetingID),
			logger.Error(updErr))
	}

	if transcript, language := c.agg.Drain(); transcript != "" {
		if _, saveErr := c.meetings.SaveTranscription(meetingID, transcript, language); saveErr != nil {
			c.logger.Error("Failed to persist live transcript",
				logger.String("meeting_id", meetingID),
				logger.Error(saveErr))
		}
	}

	c.agg.Reset()

	c.mu.Lock()
	c.state = StateIdle
	c.meetingID = ""
	c.audioPath = ""
	c.elapsed = 0
	c.sub = nil
	c.mu.Unlock()

	c.logger.Info("Recording session stopped",
		logger.String("meeting_id", meetingID),
		logger.Int64("duration_seconds", elapsed))

	if err != nil {
		return "", fmt.Errorf("failed to stop capture: %w", err)
	}
	return audioPath, nil
}

// Tick advances the elapsed-time counter by one second. The caller owns
// the timer; ticks outside a recording session are ignored.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRecording {
		c.elapsed++
	}
}

// Elapsed returns the recorded seconds of the active session
func (c *Controller) Elapsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Recording reports whether a session is currently active
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRecording
}

// Status returns a snapshot of the session state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:          c.state,
		MeetingID:      c.meetingID,
		ElapsedSeconds: c.elapsed,
	}
}

// LiveTranscript returns the transcript accumulated so far in the active
// session
func (c *Controller) LiveTranscript() string {
	text, _ := c.agg.Drain()
	return text
}
