package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
	_ "modernc.org/sqlite"
)

// Meeting status values. A meeting only ever moves forward along this chain;
// callers must not write an earlier status over a later one.
const (
	StatusRecording    = "recording"
	StatusRecorded     = "recorded"
	StatusTranscribing = "transcribing"
	StatusTranscribed  = "transcribed"
	StatusCompleted    = "completed"
)

// Meeting represents a meeting record in the database
type Meeting struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	CreatedAt       string  `json:"created_at"`
	DurationSeconds *int64  `json:"duration_seconds"`
	AudioPath       *string `json:"audio_path"`
	Status          string  `json:"status"`
}

// Report represents a generated meeting report
type Report struct {
	ID           string   `json:"id"`
	Highlights   []string `json:"highlights"`
	Participants []string `json:"participants"`
	ActionItems  []string `json:"action_items"`
	LLMProvider  *string  `json:"llm_provider"`
	LLMModel     *string  `json:"llm_model"`
	CreatedAt    string   `json:"created_at"`
}

// MeetingWithDetails represents a meeting with its latest transcript and report
type MeetingWithDetails struct {
	Meeting    *Meeting `json:"meeting"`
	Transcript *string  `json:"transcript"`
	Report     *Report  `json:"report"`
}

// MeetingUpdate represents a partial update to a meeting record.
// Nil fields are left unchanged.
type MeetingUpdate struct {
	Title           *string
	DurationSeconds *int64
	Status          *string
	AudioPath       *string
}

// MeetingStorage handles storage of meetings, transcripts and reports
type MeetingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewMeetingStorage creates a new SQLite-based meeting storage
func NewMeetingStorage(dbPath string, log *logger.Logger) (*MeetingStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &MeetingStorage{
		db:     db,
		logger: storageLogger,
	}

	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *MeetingStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS meetings (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL,
			duration_seconds INTEGER,
			audio_path TEXT,
			status TEXT NOT NULL DEFAULT 'recording'
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create meetings table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcriptions (
			id TEXT PRIMARY KEY,
			meeting_id TEXT NOT NULL,
			content TEXT NOT NULL,
			language TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcriptions table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			meeting_id TEXT NOT NULL,
			highlights TEXT,
			participants TEXT,
			action_items TEXT,
			raw_response TEXT,
			llm_provider TEXT,
			llm_model TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcriptions_meeting_id ON transcriptions(meeting_id)`)
	if err != nil {
		return fmt.Errorf("failed to create transcriptions index: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_reports_meeting_id ON reports(meeting_id)`)
	if err != nil {
		return fmt.Errorf("failed to create reports index: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_meetings_created_at ON meetings(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create meetings index: %w", err)
	}

	return nil
}

// GetDB returns the underlying database connection so that other storages
// can share the same file
func (s *MeetingStorage) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *MeetingStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateMeeting inserts a new meeting with status "recording" and returns it.
// audioPath may be empty when the artifact location is not known yet.
func (s *MeetingStorage) CreateMeeting(title, audioPath string) (*Meeting, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	var audio any
	if audioPath != "" {
		audio = audioPath
	}

	_, err := s.db.Exec(
		`INSERT INTO meetings (id, title, created_at, audio_path, status) VALUES (?, ?, ?, ?, ?)`,
		id, title, createdAt, audio, StatusRecording,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meeting: %w", err)
	}

	meeting := &Meeting{
		ID:        id,
		Title:     title,
		CreatedAt: createdAt,
		Status:    StatusRecording,
	}
	if audioPath != "" {
		meeting.AudioPath = &audioPath
	}

	s.logger.Debug("Created meeting",
		logger.String("id", id),
		logger.String("title", title))

	return meeting, nil
}

// UpdateMeeting applies a partial update to a meeting record. Fields left
// nil in upd keep their current value.
func (s *MeetingStorage) UpdateMeeting(id string, upd MeetingUpdate) error {
	if upd.Title != nil {
		if _, err := s.db.Exec(`UPDATE meetings SET title = ? WHERE id = ?`, *upd.Title, id); err != nil {
			return fmt.Errorf("failed to update meeting title: %w", err)
		}
	}
	if upd.DurationSeconds != nil {
		if _, err := s.db.Exec(`UPDATE meetings SET duration_seconds = ? WHERE id = ?`, *upd.DurationSeconds, id); err != nil {
			return fmt.Errorf("failed to update meeting duration: %w", err)
		}
	}
	if upd.Status != nil {
		if _, err := s.db.Exec(`UPDATE meetings SET status = ? WHERE id = ?`, *upd.Status, id); err != nil {
			return fmt.Errorf("failed to update meeting status: %w", err)
		}
	}
	if upd.AudioPath != nil {
		if _, err := s.db.Exec(`UPDATE meetings SET audio_path = ? WHERE id = ?`, *upd.AudioPath, id); err != nil {
			return fmt.Errorf("failed to update meeting audio path: %w", err)
		}
	}
	return nil
}

// GetMeetings returns all meetings, most recently created first
func (s *MeetingStorage) GetMeetings() ([]*Meeting, error) {
	rows, err := s.db.Query(
		`SELECT id, title, created_at, duration_seconds, audio_path, status
		FROM meetings
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*Meeting
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}

	return meetings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*Meeting, error) {
	var meeting Meeting
	var duration sql.NullInt64
	var audioPath sql.NullString

	if err := row.Scan(
		&meeting.ID,
		&meeting.Title,
		&meeting.CreatedAt,
		&duration,
		&audioPath,
		&meeting.Status,
	); err != nil {
		return nil, fmt.Errorf("failed to scan meeting: %w", err)
	}

	if duration.Valid {
		meeting.DurationSeconds = &duration.Int64
	}
	if audioPath.Valid {
		meeting.AudioPath = &audioPath.String
	}

	return &meeting, nil
}

// GetMeeting returns a single meeting with its latest transcript and report
func (s *MeetingStorage) GetMeeting(id string) (*MeetingWithDetails, error) {
	row := s.db.QueryRow(
		`SELECT id, title, created_at, duration_seconds, audio_path, status
		FROM meetings WHERE id = ?`, id,
	)
	meeting, err := scanMeeting(row)
	if err != nil {
		return nil, err
	}

	details := &MeetingWithDetails{Meeting: meeting}

	var content string
	err = s.db.QueryRow(
		`SELECT content FROM transcriptions WHERE meeting_id = ? ORDER BY created_at DESC LIMIT 1`, id,
	).Scan(&content)
	switch err {
	case nil:
		details.Transcript = &content
	case sql.ErrNoRows:
		// No transcript yet
	default:
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}

	report, err := s.getReport(id)
	if err != nil {
		return nil, err
	}
	details.Report = report

	return details, nil
}

func (s *MeetingStorage) getReport(meetingID string) (*Report, error) {
	var report Report
	var highlightsJSON, participantsJSON, actionItemsJSON sql.NullString
	var provider, model sql.NullString

	err := s.db.QueryRow(
		`SELECT id, highlights, participants, action_items, llm_provider, llm_model, created_at
		FROM reports WHERE meeting_id = ? ORDER BY created_at DESC LIMIT 1`, meetingID,
	).Scan(&report.ID, &highlightsJSON, &participantsJSON, &actionItemsJSON, &provider, &model, &report.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	report.Highlights = decodeStringList(highlightsJSON)
	report.Participants = decodeStringList(participantsJSON)
	report.ActionItems = decodeStringList(actionItemsJSON)
	if provider.Valid {
		report.LLMProvider = &provider.String
	}
	if model.Valid {
		report.LLMModel = &model.String
	}

	return &report, nil
}

func decodeStringList(col sql.NullString) []string {
	if !col.Valid {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal([]byte(col.String), &list); err != nil {
		return []string{}
	}
	return list
}

// DeleteMeeting removes a meeting and, via foreign keys, its transcript and
// report. The audio artifact on disk is removed best-effort.
func (s *MeetingStorage) DeleteMeeting(id string) error {
	var audioPath sql.NullString
	err := s.db.QueryRow(`SELECT audio_path FROM meetings WHERE id = ?`, id).Scan(&audioPath)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to query meeting audio path: %w", err)
	}

	res, err := s.db.Exec(`DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting not found: %s", id)
	}

	if audioPath.Valid && audioPath.String != "" {
		if err := os.Remove(audioPath.String); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove audio artifact",
				logger.String("path", audioPath.String),
				logger.Error(err))
		}
	}

	return nil
}

// SaveTranscription stores a transcript for a meeting and moves the meeting
// status to "transcribed". Returns the transcript id.
func (s *MeetingStorage) SaveTranscription(meetingID, content, language string) (string, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	var lang any
	if language != "" {
		lang = language
	}

	_, err := s.db.Exec(
		`INSERT INTO transcriptions (id, meeting_id, content, language, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, meetingID, content, lang, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert transcription: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE meetings SET status = ? WHERE id = ?`, StatusTranscribed, meetingID); err != nil {
		return "", fmt.Errorf("failed to update meeting status: %w", err)
	}

	s.logger.Debug("Saved transcription",
		logger.String("meeting_id", meetingID),
		logger.Int("content_length", len(content)))

	return id, nil
}

// SaveReport stores a generated report for a meeting and moves the meeting
// status to "completed"
func (s *MeetingStorage) SaveReport(meetingID string, highlights, participants, actionItems []string, rawResponse, provider, model string) (*Report, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	highlightsJSON, _ := json.Marshal(highlights)
	participantsJSON, _ := json.Marshal(participants)
	actionItemsJSON, _ := json.Marshal(actionItems)

	_, err := s.db.Exec(
		`INSERT INTO reports (id, meeting_id, highlights, participants, action_items, raw_response, llm_provider, llm_model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, meetingID, string(highlightsJSON), string(participantsJSON), string(actionItemsJSON),
		rawResponse, provider, model, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE meetings SET status = ? WHERE id = ?`, StatusCompleted, meetingID); err != nil {
		return nil, fmt.Errorf("failed to update meeting status: %w", err)
	}

	return &Report{
		ID:           id,
		Highlights:   highlights,
		Participants: participants,
		ActionItems:  actionItems,
		LLMProvider:  &provider,
		LLMModel:     &model,
		CreatedAt:    createdAt,
	}, nil
}
