package transcription

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

type fakeTranscriber struct {
	mu      sync.Mutex
	calls   [][]byte
	results []*Result
}

func (f *fakeTranscriber) TranscribeReader(ctx context.Context, filename string, audio io.Reader, language string) (*Result, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		return r, nil
	}
	return &Result{Language: "en"}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestStreamer(client chunkTranscriber) *Streamer {
	return NewStreamer(client,
		&config.TranscriptionConfig{CheckIntervalSec: 1, MinChunkSecs: 1},
		&config.CaptureConfig{SampleRate: 16000, Channels: 1},
		logger.NewNop())
}

// writeTestWAV writes a WAV file with the given number of seconds of
// silence at 16kHz mono
func writeTestWAV(t *testing.T, path string, seconds int) {
	t.Helper()
	pcm := make([]byte, seconds*16000*2)
	var buf bytes.Buffer
	writeWAVHeader(&buf, len(pcm), 16000, 1)
	buf.Write(pcm)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestStreamerEmitsOffsetSegments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")
	writeTestWAV(t, path, 2)

	client := &fakeTranscriber{results: []*Result{
		{Language: "it", Segments: []Segment{
			{Start: 0.0, End: 1.0, Text: "ciao"},
			{Start: 1.0, End: 2.0, Text: "mondo"},
		}},
	}}

	var mu sync.Mutex
	var batches []Batch
	sub := newTestStreamer(client).Follow(context.Background(), path, "it", func(b Batch) {
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 5*time.Second, 50*time.Millisecond)
	sub.Cancel()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	assert.Equal(t, "it", batches[0].Language)
	require.Len(t, batches[0].Segments, 2)
	assert.Equal(t, "ciao", batches[0].Segments[0].Text)
	assert.Equal(t, "mondo", batches[0].Segments[1].Text)
	assert.Equal(t, 0.0, batches[0].Segments[0].Start)
}

func TestStreamerSkipsShortAudio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")

	// less data than the minimum chunk
	pcm := make([]byte, 100)
	var buf bytes.Buffer
	writeWAVHeader(&buf, len(pcm), 16000, 1)
	buf.Write(pcm)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	client := &fakeTranscriber{}
	sub := newTestStreamer(client).Follow(context.Background(), path, "", func(Batch) {
		t.Error("handler should not be called")
	})

	time.Sleep(1500 * time.Millisecond)
	sub.Cancel()
	assert.Equal(t, 0, client.callCount())
}

func TestStreamerToleratesMissingFile(t *testing.T) {
	client := &fakeTranscriber{}
	sub := newTestStreamer(client).Follow(context.Background(),
		filepath.Join(t.TempDir(), "nope.wav"), "", func(Batch) {
			t.Error("handler should not be called")
		})

	time.Sleep(1200 * time.Millisecond)
	sub.Cancel()
	assert.Equal(t, 0, client.callCount())
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")
	writeTestWAV(t, path, 1)

	sub := newTestStreamer(&fakeTranscriber{}).Follow(context.Background(), path, "", func(Batch) {})
	sub.Cancel()
	sub.Cancel()
}

func TestStreamerChunkIsValidWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")
	writeTestWAV(t, path, 2)

	client := &fakeTranscriber{}
	sub := newTestStreamer(client).Follow(context.Background(), path, "", func(Batch) {})

	require.Eventually(t, func() bool { return client.callCount() > 0 },
		5*time.Second, 50*time.Millisecond)
	sub.Cancel()

	client.mu.Lock()
	chunk := client.calls[0]
	client.mu.Unlock()

	require.Greater(t, len(chunk), wavHeaderSize)
	assert.Equal(t, "RIFF", string(chunk[0:4]))
	assert.Equal(t, "WAVE", string(chunk[8:12]))

	dataLen := binary.LittleEndian.Uint32(chunk[40:44])
	assert.Equal(t, int(dataLen), len(chunk)-wavHeaderSize)
}
