package transcription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/storage/sqlite"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

type serviceFakeStore struct {
	meeting       *sqlite.MeetingWithDetails
	statusUpdates []string
	savedContent  string
	savedLanguage string
}

func (f *serviceFakeStore) GetMeeting(id string) (*sqlite.MeetingWithDetails, error) {
	if f.meeting == nil {
		return nil, errors.New("meeting not found")
	}
	return f.meeting, nil
}

func (f *serviceFakeStore) UpdateMeeting(id string, upd sqlite.MeetingUpdate) error {
	if upd.Status != nil {
		f.statusUpdates = append(f.statusUpdates, *upd.Status)
	}
	return nil
}

func (f *serviceFakeStore) SaveTranscription(meetingID, content, language string) (string, error) {
	f.savedContent = content
	f.savedLanguage = language
	return "t-1", nil
}

type fakeFileTranscriber struct {
	result  *Result
	err     error
	gotPath string
	gotLang string
}

func (f *fakeFileTranscriber) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	f.gotPath = audioPath
	f.gotLang = language
	return f.result, f.err
}

func recordedMeeting(audioPath string) *sqlite.MeetingWithDetails {
	m := &sqlite.Meeting{ID: "m-1", Status: sqlite.StatusRecorded}
	if audioPath != "" {
		m.AudioPath = &audioPath
	}
	return &sqlite.MeetingWithDetails{Meeting: m}
}

func TestTranscribeMeetingSavesResult(t *testing.T) {
	store := &serviceFakeStore{meeting: recordedMeeting("/tmp/rec.wav")}
	client := &fakeFileTranscriber{result: &Result{
		Text:     "buongiorno a tutti",
		Language: "it",
		Segments: []Segment{{Start: 0, End: 2, Text: "buongiorno a tutti"}},
	}}
	svc := NewService(client, store, logger.NewNop())

	result, err := svc.TranscribeMeeting(context.Background(), "m-1", "it")
	require.NoError(t, err)
	assert.Equal(t, "buongiorno a tutti", result.Text)
	assert.Equal(t, "/tmp/rec.wav", client.gotPath)
	assert.Equal(t, "it", client.gotLang)

	// the meeting is flagged transcribing while the request is in flight
	assert.Equal(t, []string{sqlite.StatusTranscribing}, store.statusUpdates)
	assert.Equal(t, "buongiorno a tutti", store.savedContent)
	assert.Equal(t, "it", store.savedLanguage)
}

func TestTranscribeMeetingRollsBackOnFailure(t *testing.T) {
	store := &serviceFakeStore{meeting: recordedMeeting("/tmp/rec.wav")}
	client := &fakeFileTranscriber{err: errors.New("whisper server unreachable")}
	svc := NewService(client, store, logger.NewNop())

	_, err := svc.TranscribeMeeting(context.Background(), "m-1", "")
	require.Error(t, err)

	assert.Equal(t, []string{sqlite.StatusTranscribing, sqlite.StatusRecorded}, store.statusUpdates)
	assert.Empty(t, store.savedContent)
}

func TestTranscribeMeetingRequiresAudio(t *testing.T) {
	store := &serviceFakeStore{meeting: recordedMeeting("")}
	client := &fakeFileTranscriber{}
	svc := NewService(client, store, logger.NewNop())

	_, err := svc.TranscribeMeeting(context.Background(), "m-1", "")
	require.Error(t, err)
	assert.Empty(t, store.statusUpdates)
	assert.Empty(t, client.gotPath)
}

func TestTranscribeMeetingUnknownMeeting(t *testing.T) {
	svc := NewService(&fakeFileTranscriber{}, &serviceFakeStore{}, logger.NewNop())

	_, err := svc.TranscribeMeeting(context.Background(), "missing", "")
	assert.Error(t, err)
}
