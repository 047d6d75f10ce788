package transcription

import (
	"context"
	"fmt"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/storage/sqlite"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// meetingStore is the slice of meeting storage the service uses
type meetingStore interface {
	GetMeeting(id string) (*sqlite.MeetingWithDetails, error)
	UpdateMeeting(id string, upd sqlite.MeetingUpdate) error
	SaveTranscription(meetingID, content, language string) (string, error)
}

// fileTranscriber is the slice of Client the service uses
type fileTranscriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
}

// Service transcribes the full recording of a stored meeting
type Service struct {
	client   fileTranscriber
	meetings meetingStore
	logger   *logger.Logger
}

// NewService creates a transcription service
func NewService(client fileTranscriber, meetings meetingStore, log *logger.Logger) *Service {
	return &Service{
		client:   client,
		meetings: meetings,
		logger:   log.Named("transcription-service"),
	}
}

// TranscribeMeeting transcribes a meeting's audio file and stores the
// result. The meeting moves to status "transcribing" while the request is
// in flight and to "transcribed" once the transcript is saved.
func (s *Service) TranscribeMeeting(ctx context.Context, meetingID, language string) (*Result, error) {
	details, err := s.meetings.GetMeeting(meetingID)
	if err != nil {
		return nil, err
	}
	if details.Meeting.AudioPath == nil || *details.Meeting.AudioPath == "" {
		return nil, fmt.Errorf("meeting %s has no recorded audio", meetingID)
	}

	status := sqlite.StatusTranscribing
	if err := s.meetings.UpdateMeeting(meetingID, sqlite.MeetingUpdate{Status: &status}); err != nil {
		return nil, err
	}

	result, err := s.client.Transcribe(ctx, *details.Meeting.AudioPath, language)
	if err != nil {
		// do not strand the meeting in "transcribing"
		prev := sqlite.StatusRecorded
		if rbErr := s.meetings.UpdateMeeting(meetingID, sqlite.MeetingUpdate{Status: &prev}); rbErr != nil {
			s.logger.Warn("Failed to roll back meeting status",
				logger.String("meeting_id", meetingID),
				logger.Error(rbErr))
		}
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	if _, err := s.meetings.SaveTranscription(meetingID, result.Text, result.Language); err != nil {
		return nil, err
	}

	s.logger.Info("Meeting transcribed",
		logger.String("meeting_id", meetingID),
		logger.String("language", result.Language),
		logger.Int("segments", len(result.Segments)))
	return result, nil
}
