package transcription

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

const wavHeaderSize = 44

// Batch is a set of segments recognized from newly arrived audio
type Batch struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// chunkTranscriber is the slice of Client the streamer needs
type chunkTranscriber interface {
	TranscribeReader(ctx context.Context, filename string, audio io.Reader, language string) (*Result, error)
}

// Streamer follows a growing WAV file and transcribes newly appended audio
// in chunks, delivering recognized segments to a handler as they appear
type Streamer struct {
	client        chunkTranscriber
	logger        *logger.Logger
	checkInterval time.Duration
	minChunk      time.Duration
	sampleRate    int
	channels      int
}

// NewStreamer creates a live transcription follower
func NewStreamer(client chunkTranscriber, cfg *config.TranscriptionConfig, capCfg *config.CaptureConfig, log *logger.Logger) *Streamer {
	return &Streamer{
		client:        client,
		logger:        log.Named("streamer"),
		checkInterval: time.Duration(cfg.CheckIntervalSec) * time.Second,
		minChunk:      time.Duration(cfg.MinChunkSecs) * time.Second,
		sampleRate:    capCfg.SampleRate,
		channels:      capCfg.Channels,
	}
}

// Subscription is a handle on a running follower. Cancel stops it and
// waits for the follower goroutine to exit, so no handler call can happen
// after Cancel returns.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops the follower and blocks until delivery has fully ceased
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

// Follow starts following audioPath. The handler is invoked from a single
// goroutine, one batch at a time, until the subscription is cancelled.
func (s *Streamer) Follow(ctx context.Context, audioPath, language string, handler func(Batch)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		s.run(ctx, audioPath, language, handler)
	}()

	return sub
}

func (s *Streamer) run(ctx context.Context, audioPath, language string, handler func(Batch)) {
	bytesPerSecond := int64(s.sampleRate * s.channels * 2)
	minChunkBytes := int64(s.minChunk.Seconds()) * bytesPerSecond

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	var lastPos int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(audioPath)
		if err != nil {
			// recorder may not have created the file yet
			continue
		}

		available := info.Size() - wavHeaderSize - lastPos
		if available < minChunkBytes {
			continue
		}
		// keep chunks sample-aligned
		available -= available % int64(s.channels*2)

		chunk, err := s.readChunk(audioPath, lastPos, available)
		if err != nil {
			s.logger.Warn("Failed to read audio chunk", logger.Error(err))
			continue
		}

		result, err := s.client.TranscribeReader(ctx, "chunk.wav", chunk, language)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Chunk transcription failed", logger.Error(err))
			continue
		}

		offset := float64(lastPos) / float64(bytesPerSecond)
		segments := make([]Segment, 0, len(result.Segments))
		for _, seg := range result.Segments {
			if seg.Text == "" {
				continue
			}
			segments = append(segments, Segment{
				Start: seg.Start + offset,
				End:   seg.End + offset,
				Text:  seg.Text,
			})
		}

		lastPos += available

		if len(segments) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		handler(Batch{Language: result.Language, Segments: segments})
	}
}

// readChunk cuts [offset, offset+length) out of the recording's PCM data
// and wraps it in a standalone WAV container
func (s *Streamer) readChunk(audioPath string, offset, length int64) (io.Reader, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(wavHeaderSize+offset, io.SeekStart); err != nil {
		return nil, err
	}

	pcm := make([]byte, length)
	if _, err := io.ReadFull(f, pcm); err != nil {
		return nil, fmt.Errorf("short read from %s: %w", filepath.Base(audioPath), err)
	}

	var buf bytes.Buffer
	writeWAVHeader(&buf, len(pcm), s.sampleRate, s.channels)
	buf.Write(pcm)
	return &buf, nil
}

// writeWAVHeader writes a canonical 44-byte PCM WAV header
func writeWAVHeader(w *bytes.Buffer, dataLen, sampleRate, channels int) {
	byteRate := sampleRate * channels * 2

	w.WriteString("RIFF")
	binary.Write(w, binary.LittleEndian, uint32(36+dataLen))
	w.WriteString("WAVE")
	w.WriteString("fmt ")
	binary.Write(w, binary.LittleEndian, uint32(16))
	binary.Write(w, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(w, binary.LittleEndian, uint16(channels))
	binary.Write(w, binary.LittleEndian, uint32(sampleRate))
	binary.Write(w, binary.LittleEndian, uint32(byteRate))
	binary.Write(w, binary.LittleEndian, uint16(channels*2))
	binary.Write(w, binary.LittleEndian, uint16(16))
	w.WriteString("data")
	binary.Write(w, binary.LittleEndian, uint32(dataLen))
}
